// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/muse-tui/internal/model"
)

// EphemeralID is the fixed ID of the incognito conversation.
const EphemeralID = "temp"

// Sentinel errors.
var (
	ErrNotFound         = errors.New("store: conversation not found")
	ErrStreamInProgress = errors.New("store: stream already in progress")
)

// archiveTimeout bounds a single Archiver call.
const archiveTimeout = 5 * time.Second

// Archiver persists finished conversations. storage.DB implements it.
type Archiver interface {
	SaveConversation(ctx context.Context, conv *model.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
}

// Update carries optional changes applied together with new content.
type Update struct {
	Suggestions *[]string
	Streaming   *bool
}

// Option configures a Store.
type Option func(*Store)

// WithArchiver archives finished conversations through a.
func WithArchiver(a Archiver) Option {
	return func(s *Store) { s.archiver = a }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithPrefix("store")
		}
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single owner of conversation state. It is safe for
// concurrent use.
type Store struct {
	mu            sync.RWMutex
	conversations []*model.Conversation // most recent first
	activeID      string
	ephemeral     *model.Conversation
	streams       map[string]string // conversation ID -> streaming message ID

	archiver Archiver
	logger   *log.Logger
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		streams: make(map[string]string),
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the conversation list, typically with archived history.
// The given order is kept.
func (s *Store) Load(convs []*model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]*model.Conversation, 0, len(convs))
	for _, c := range convs {
		if c == nil || c.IsEphemeral {
			continue
		}
		s.conversations = append(s.conversations, c.Clone())
	}
	if s.activeID != "" && s.findLocked(s.activeID) == nil {
		s.activeID = ""
	}
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// Create starts a new conversation. A normal conversation is inserted at the
// head of the list, becomes active, and its ID is returned. In incognito the
// ephemeral slot is cleared instead and EphemeralID is returned; the slot is
// filled on the next send.
func (s *Store) Create(incognito bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if incognito {
		s.resetEphemeralLocked()
		return EphemeralID
	}

	conv := model.NewConversation(false)
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	return conv.ID
}

// StartConversation resolves the conversation a send goes to and appends
// msgs to it. In incognito the ephemeral slot is created on demand. Otherwise
// the active conversation is used, or a new one is created at the head and
// made active. New conversations are titled from firstUserText.
func (s *Store) StartConversation(incognito bool, firstUserText string, msgs ...*model.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.targetLocked(incognito, firstUserText)
	for _, m := range msgs {
		conv.AddMessage(m.Clone())
	}
	return conv.ID
}

// StartStream is StartConversation for a send: it appends user and the
// streaming placeholder ai and registers ai as the conversation's stream in
// one step. When a stream is already running there, nothing is appended and
// ErrStreamInProgress is returned.
func (s *Store) StartStream(incognito bool, user, ai *model.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.targetLocked(incognito, user.Content)
	if _, busy := s.streams[conv.ID]; busy {
		return conv.ID, ErrStreamInProgress
	}
	conv.AddMessage(user.Clone())
	conv.AddMessage(ai.Clone())
	s.streams[conv.ID] = ai.ID
	return conv.ID, nil
}

// targetLocked resolves the conversation a new message goes to, creating it
// when needed.
func (s *Store) targetLocked(incognito bool, firstUserText string) *model.Conversation {
	switch {
	case incognito:
		if s.ephemeral == nil {
			s.ephemeral = newEphemeral(firstUserText)
		}
		return s.ephemeral
	case s.activeID != "" && s.findLocked(s.activeID) != nil:
		return s.findLocked(s.activeID)
	default:
		conv := model.NewConversation(false)
		conv.Title = model.TitleFrom(firstUserText)
		s.conversations = append([]*model.Conversation{conv}, s.conversations...)
		s.activeID = conv.ID
		return conv
	}
}

// Select makes id the active conversation. Unknown IDs are ignored.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findInListLocked(id) != nil {
		s.activeID = id
	}
}

// ClearActive deselects the active conversation.
func (s *Store) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

// Delete removes a conversation and abandons its stream. Deleting the
// active conversation leaves no conversation active. It reports whether the
// deleted conversation was the active one.
func (s *Store) Delete(id string) bool {
	if id == EphemeralID {
		s.DiscardEphemeral()
		return false
	}

	s.mu.Lock()
	wasActive := s.activeID == id
	found := false
	for i, c := range s.conversations {
		if c.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			found = true
			break
		}
	}
	delete(s.streams, id)
	if wasActive {
		s.activeID = ""
	}
	archiver := s.archiver
	s.mu.Unlock()

	if found && archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := archiver.DeleteConversation(ctx, id); err != nil {
			s.logger.Warn("failed to delete archived conversation", "id", id, "err", err)
		}
	}
	return wasActive
}

// ResetEphemeral empties the incognito slot.
func (s *Store) ResetEphemeral() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetEphemeralLocked()
}

// DiscardEphemeral drops the incognito conversation when incognito ends.
func (s *Store) DiscardEphemeral() {
	s.ResetEphemeral()
}

func (s *Store) resetEphemeralLocked() {
	s.ephemeral = nil
	delete(s.streams, EphemeralID)
}

func newEphemeral(title string) *model.Conversation {
	conv := model.NewConversation(true)
	conv.ID = EphemeralID
	conv.Title = model.TitleFrom(title)
	return conv
}

// =============================================================================
// MESSAGES
// =============================================================================

// AppendMessages appends msgs in order. It returns false if the
// conversation does not exist.
func (s *Store) AppendMessages(convID string, msgs ...*model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(convID)
	if conv == nil {
		return false
	}
	for _, m := range msgs {
		conv.AddMessage(m.Clone())
	}
	return true
}

// UpdateMessageContent replaces the content of a message and applies the
// optional fields of upd. It returns false if nothing matched.
func (s *Store) UpdateMessageContent(convID, msgID, content string, upd *Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(convID)
	if conv == nil {
		return false
	}
	msg := conv.MessageByID(msgID)
	if msg == nil {
		return false
	}

	msg.Content = content
	if upd != nil {
		if upd.Suggestions != nil {
			msg.Suggestions = append([]string(nil), (*upd.Suggestions)...)
		}
		if upd.Streaming != nil {
			msg.IsStreaming = *upd.Streaming
		}
	}
	conv.UpdatedAt = time.Now()
	return true
}

// ClearSuggestions empties the suggestions of msgID wherever it lives.
func (s *Store) ClearSuggestions(msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.allLocked() {
		if msg := conv.MessageByID(msgID); msg != nil {
			msg.Suggestions = nil
			return true
		}
	}
	return false
}

// Finalize writes the final content and suggestions of a streamed message,
// clears its streaming flag, and ends its stream. Finished normal
// conversations are handed to the Archiver.
func (s *Store) Finalize(convID, msgID, content string, suggestions []string) bool {
	streaming := false
	if !s.UpdateMessageContent(convID, msgID, content, &Update{
		Suggestions: &suggestions,
		Streaming:   &streaming,
	}) {
		s.EndStream(convID, msgID)
		return false
	}
	s.EndStream(convID, msgID)

	if convID == EphemeralID {
		return true
	}

	s.mu.RLock()
	archiver := s.archiver
	var snapshot *model.Conversation
	if conv := s.findInListLocked(convID); conv != nil && archiver != nil {
		snapshot = conv.Clone()
	}
	s.mu.RUnlock()

	if snapshot != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := archiver.SaveConversation(ctx, snapshot); err != nil {
			s.logger.Warn("failed to archive conversation", "id", convID, "err", err)
		}
	}
	return true
}

// =============================================================================
// STREAM REGISTRY
// =============================================================================

// BeginStream registers msgID as the streaming message of convID.
func (s *Store) BeginStream(convID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(convID) == nil {
		return ErrNotFound
	}
	if _, busy := s.streams[convID]; busy {
		return ErrStreamInProgress
	}
	s.streams[convID] = msgID
	return nil
}

// IsActiveStream reports whether msgID is the registered stream of convID.
func (s *Store) IsActiveStream(convID, msgID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active, ok := s.streams[convID]
	return ok && active == msgID
}

// EndStream unregisters the stream if msgID is still the registered one.
func (s *Store) EndStream(convID, msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streams[convID] == msgID {
		delete(s.streams, convID)
	}
}

// =============================================================================
// READS
// =============================================================================

// List returns copies of all normal conversations, most recent first.
func (s *Store) List() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Get returns a copy of the conversation, or nil.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.findLocked(id); c != nil {
		return c.Clone()
	}
	return nil
}

// ActiveID returns the active conversation ID, or "" when none.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.findInListLocked(s.activeID); c != nil {
		return c.Clone()
	}
	return nil
}

// Ephemeral returns a copy of the incognito conversation, or nil.
func (s *Store) Ephemeral() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ephemeral != nil {
		return s.ephemeral.Clone()
	}
	return nil
}

// Len returns the number of normal conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func (s *Store) findLocked(id string) *model.Conversation {
	if id == EphemeralID {
		return s.ephemeral
	}
	return s.findInListLocked(id)
}

func (s *Store) findInListLocked(id string) *model.Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Store) allLocked() []*model.Conversation {
	all := s.conversations
	if s.ephemeral != nil {
		all = append([]*model.Conversation{s.ephemeral}, all...)
	}
	return all
}
