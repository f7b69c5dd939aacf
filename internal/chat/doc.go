// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates a muse session: sending messages, streaming
// answers into the store, and the incognito and research modes.
//
// # Key Types
//
//   - Session: the front-end facing API; safe for concurrent use
//   - ViewState: plain data snapshot for rendering
//   - Event: change notification delivered through Options.Notify
//
// # Usage
//
//	sess := chat.New(chat.Options{
//	    Config: cfg,
//	    Source: ollama.NewClientWithConfig(...),
//	    Store:  store.New(),
//	    Notify: func(ev chat.Event) { program.Send(ev) },
//	})
//	defer sess.Close()
//	err := sess.Send(ctx, "Explain goroutines")
//
// # Streams
//
// Only one answer streams at a time; Send returns ErrBusy while one is in
// flight. Deleting the conversation, leaving incognito, or Cancel stop the
// request. Whatever already arrived is kept as the final message.
//
// Frames are paced by a goroutine per stream, or, with
// Options.ExternalFrames, by the caller invoking Tick from its own loop.
package chat
