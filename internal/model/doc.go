// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: ordered messages plus title and ephemeral flag
//   - Message: role, content, streaming flag and follow-up suggestions
//   - Role: user, assistant or system
//
// Values in this package carry no synchronisation of their own. The store
// package owns the live instances and hands out clones.
//
// # Usage
//
//	conv := model.NewConversation(false)
//	conv.AddMessage(model.NewUserMessage("Hello!"))
//	conv.AddMessage(model.NewAssistantMessage())
package model
