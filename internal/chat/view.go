// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/muse-tui/internal/extract"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/modes"
)

// ViewState is a plain-data snapshot of a session.
type ViewState struct {
	Conversations []*model.Conversation
	ActiveID      string

	// Current is the conversation on screen, nil when none.
	Current *model.Conversation

	Typing   bool
	Thinking bool

	Researching    bool
	ResearchStatus string
	ResearchSource modes.Source

	// Code is the live code preview; empty Code means nothing to show.
	Code extract.CodeBlock

	Modes     modes.Modes
	LastError error

	UserName string
	Model    string
}

// HasCode reports whether a code preview is available.
func (v ViewState) HasCode() bool {
	return v.Code.Code != ""
}

// EventKind identifies what changed.
type EventKind int

const (
	EventStarted EventKind = iota
	EventContent
	EventThinking
	EventCode
	EventResearch
	EventFinished
	EventError
	EventConversations
	EventModes
	EventSettings
)

// String returns the event name for logs.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventContent:
		return "content"
	case EventThinking:
		return "thinking"
	case EventCode:
		return "code"
	case EventResearch:
		return "research"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	case EventConversations:
		return "conversations"
	case EventModes:
		return "modes"
	case EventSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Event notifies a front end that the view state changed.
type Event struct {
	Kind           EventKind
	ConversationID string
	MessageID      string

	// Content is the visible text after an EventContent; Final marks the
	// finalised answer.
	Content string
	Final   bool

	Thinking bool
	Status   string
	Err      error
}
