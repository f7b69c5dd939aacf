// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/jeranaias/muse-tui/internal/ollama"
	"github.com/jeranaias/muse-tui/internal/util"
)

const (
	// DefaultTitle is shown until the first user message names the conversation.
	DefaultTitle = "New conversation"

	// TitleWidth caps derived titles, in terminal columns.
	TitleWidth = 30
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat thread and its metadata.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// IsEphemeral marks the incognito conversation. It is never archived and
	// is discarded outright when incognito ends.
	IsEphemeral bool `json:"-"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation(ephemeral bool) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:          NewID(),
		Title:       DefaultTitle,
		Messages:    make([]*Message, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
		IsEphemeral: ephemeral,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends msg and names the conversation after the first user
// message if it has no title yet.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
}

// MessageByID returns the message with the given ID, or nil.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// StreamingMessage returns the message currently being streamed, or nil.
func (c *Conversation) StreamingMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsStreaming {
			return c.Messages[i]
		}
	}
	return nil
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// TitleFrom derives a conversation title from user text.
func TitleFrom(text string) string {
	title := util.SingleLine(util.Normalize(text))
	if title == "" {
		return DefaultTitle
	}
	return util.TruncateWidth(title, TitleWidth)
}

func (c *Conversation) updateTitle() {
	if c.Title != "" && c.Title != DefaultTitle {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			c.Title = TitleFrom(msg.Content)
			return
		}
	}
}

// =============================================================================
// OLLAMA CONVERSION
// =============================================================================

// ToOllamaMessages converts the history to wire messages, prefixed with the
// given system prompt. Streaming placeholders and empty messages are skipped.
func (c *Conversation) ToOllamaMessages(systemPrompt string) []ollama.Message {
	messages := make([]ollama.Message, 0, len(c.Messages)+1)
	if systemPrompt != "" {
		messages = append(messages, ollama.NewSystemMessage(systemPrompt))
	}
	for _, msg := range c.Messages {
		if msg.IsStreaming || msg.Content == "" {
			continue
		}
		messages = append(messages, ollama.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return messages
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return &clone
}
