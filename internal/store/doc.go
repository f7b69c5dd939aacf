// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns every conversation and message of a session.
//
// Other components never mutate conversations directly; they issue intents
// (append, update content, finalise) against a Store. Reads return deep
// copies, so a snapshot handed to a renderer cannot observe later writes.
//
// # Key Types
//
//   - Store: conversation list, active selection, incognito slot, stream registry
//   - Update: optional fields for UpdateMessageContent
//   - Archiver: optional sink for finished, non-incognito conversations
//
// # Incognito
//
// A single ephemeral conversation lives outside the list under the fixed ID
// EphemeralID. It is never archived, and discarding it abandons its stream.
//
// # Stream Registry
//
// At most one stream is registered per conversation, keyed by message ID.
// Writers check IsActiveStream before every write; deleting a conversation
// or discarding the incognito slot drops the registration, which turns any
// late writer into a no-op.
package store
