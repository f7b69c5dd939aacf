// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns a bursty model response into a smoothly revealed
// assistant message.
//
// Arrival and display are decoupled. The Ingestor appends text to a State as
// chunks come off the wire; the Scheduler, stepped once per frame, copies a
// bounded slice of that text into the visible message. Each step reveals
// half of the backlog, at least one and at most MaxBatch characters, so
// bursts catch up in a logarithmic number of frames without large jumps.
//
// # Key Types
//
//   - State: accumulated and revealed text of one in-flight response
//   - Ingestor: feeds a State from an ollama stream
//   - Scheduler: per-frame reveal, thinking detection, finalisation
//   - Sink: where published text, previews and the final message go
//   - Target: answers whether a stream is still the active one
//
// # Usage
//
//	st := stream.NewState()
//	sched := stream.NewScheduler(convID, msgID, st, sink, store, nil, stream.DefaultSettings())
//	go ingestor.Run(ctx, req, st)
//	frame, err := sched.Run(ctx)
//
// A UI that already has a frame loop can call Step from its own tick message
// instead of Run.
//
// # Stale Writers
//
// Before every write the Scheduler asks its Target whether (convID, msgID) is
// still the active stream. Once it is not, because the conversation was
// deleted or the request was superseded, the Scheduler stops without writing.
package stream
