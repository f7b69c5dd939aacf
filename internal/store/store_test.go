// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/model"
)

type memArchiver struct {
	mu      sync.Mutex
	saved   map[string]*model.Conversation
	deleted []string
	fail    error
}

func newMemArchiver() *memArchiver {
	return &memArchiver{saved: make(map[string]*model.Conversation)}
}

func (a *memArchiver) SaveConversation(_ context.Context, conv *model.Conversation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.saved[conv.ID] = conv
	return nil
}

func (a *memArchiver) DeleteConversation(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, id)
	delete(a.saved, id)
	return nil
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestCreate_InsertsAtHeadAndActivates(t *testing.T) {
	s := New()
	first := s.Create(false)
	second := s.Create(false)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	assert.Equal(t, second, s.ActiveID())
	assert.Equal(t, model.DefaultTitle, list[0].Title)
}

func TestCreate_Incognito(t *testing.T) {
	s := New()
	s.StartConversation(true, "secret", model.NewUserMessage("secret"))
	require.NotNil(t, s.Ephemeral())

	id := s.Create(true)
	assert.Equal(t, EphemeralID, id)
	assert.Nil(t, s.Ephemeral())
	assert.Zero(t, s.Len())
}

func TestSelect_UnknownIsNoop(t *testing.T) {
	s := New()
	id := s.Create(false)
	s.Select("does-not-exist")
	assert.Equal(t, id, s.ActiveID())

	other := s.Create(false)
	s.Select(id)
	assert.Equal(t, id, s.ActiveID())
	assert.NotEqual(t, other, s.ActiveID())
}

func TestDelete(t *testing.T) {
	arch := newMemArchiver()
	s := New(WithArchiver(arch))
	keep := s.Create(false)
	gone := s.Create(false)

	assert.True(t, s.Delete(gone))
	assert.Equal(t, "", s.ActiveID())
	assert.Nil(t, s.Get(gone))
	assert.NotNil(t, s.Get(keep))
	assert.Equal(t, []string{gone}, arch.deleted)

	s.Select(keep)
	assert.False(t, s.Delete("missing"))
	assert.Equal(t, keep, s.ActiveID())
}

func TestDelete_InactiveKeepsActive(t *testing.T) {
	s := New()
	a := s.Create(false)
	b := s.Create(false)
	s.Select(a)

	assert.False(t, s.Delete(b))
	assert.Equal(t, a, s.ActiveID())
	assert.Nil(t, s.Get(b))
	assert.NotNil(t, s.Get(a))
	assert.Len(t, s.List(), 1)
}

func TestStartStream(t *testing.T) {
	s := New()
	first := model.NewAssistantMessage()
	id, err := s.StartStream(false, model.NewUserMessage("hi"), first)
	require.NoError(t, err)
	assert.Equal(t, id, s.ActiveID())
	assert.True(t, s.IsActiveStream(id, first.ID))

	second := model.NewAssistantMessage()
	again, err := s.StartStream(false, model.NewUserMessage("again"), second)
	assert.ErrorIs(t, err, ErrStreamInProgress)
	assert.Equal(t, id, again)

	conv := s.Get(id)
	require.Len(t, conv.Messages, 2)
	assert.Nil(t, conv.MessageByID(second.ID))
	assert.Equal(t, "hi", conv.Messages[0].Content)
	assert.True(t, s.IsActiveStream(id, first.ID))
}

func TestDelete_AbandonsStream(t *testing.T) {
	s := New()
	msg := model.NewAssistantMessage()
	id := s.StartConversation(false, "hi", model.NewUserMessage("hi"), msg)
	require.NoError(t, s.BeginStream(id, msg.ID))

	s.Delete(id)
	assert.False(t, s.IsActiveStream(id, msg.ID))
	assert.False(t, s.Finalize(id, msg.ID, "late", nil))
}

// =============================================================================
// SEND PATH TESTS
// =============================================================================

func TestStartConversation_CreatesWhenNoneActive(t *testing.T) {
	s := New()
	user := model.NewUserMessage("What is the capital of France and why?")
	ai := model.NewAssistantMessage()

	id := s.StartConversation(false, user.Content, user, ai)
	assert.Equal(t, id, s.ActiveID())

	conv := s.Get(id)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, user.ID, conv.Messages[0].ID)
	assert.True(t, conv.Messages[1].IsStreaming)
	assert.Equal(t, "What is the capital of Fran...", conv.Title)
}

func TestStartConversation_UsesActive(t *testing.T) {
	s := New()
	id := s.Create(false)
	got := s.StartConversation(false, "hello", model.NewUserMessage("hello"))
	assert.Equal(t, id, got)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "hello", s.Get(id).Title)
}

func TestStartConversation_Ephemeral(t *testing.T) {
	s := New()
	id := s.StartConversation(true, "psst", model.NewUserMessage("psst"))
	assert.Equal(t, EphemeralID, id)
	assert.Zero(t, s.Len())

	s.StartConversation(true, "again", model.NewUserMessage("again"))
	eph := s.Ephemeral()
	require.NotNil(t, eph)
	assert.Len(t, eph.Messages, 2)
	assert.Equal(t, "psst", eph.Title)
	assert.True(t, eph.IsEphemeral)
}

func TestAppendMessages_UnknownConversation(t *testing.T) {
	s := New()
	assert.False(t, s.AppendMessages("nope", model.NewUserMessage("x")))
}

func TestAppendMessages_CopiesInput(t *testing.T) {
	s := New()
	id := s.Create(false)
	msg := model.NewUserMessage("original")
	require.True(t, s.AppendMessages(id, msg))

	msg.Content = "mutated"
	assert.Equal(t, "original", s.Get(id).Messages[0].Content)
}

// =============================================================================
// CONTENT TESTS
// =============================================================================

func TestUpdateMessageContent(t *testing.T) {
	s := New()
	ai := model.NewAssistantMessage()
	id := s.StartConversation(false, "q", model.NewUserMessage("q"), ai)

	assert.True(t, s.UpdateMessageContent(id, ai.ID, "partial", nil))
	got := s.Get(id).MessageByID(ai.ID)
	assert.Equal(t, "partial", got.Content)
	assert.True(t, got.IsStreaming)

	sugg := []string{"a", "b"}
	streaming := false
	assert.True(t, s.UpdateMessageContent(id, ai.ID, "full", &Update{Suggestions: &sugg, Streaming: &streaming}))
	got = s.Get(id).MessageByID(ai.ID)
	assert.Equal(t, []string{"a", "b"}, got.Suggestions)
	assert.False(t, got.IsStreaming)

	assert.False(t, s.UpdateMessageContent(id, "missing", "x", nil))
	assert.False(t, s.UpdateMessageContent("missing", ai.ID, "x", nil))
}

func TestClearSuggestions(t *testing.T) {
	s := New()
	ai := model.NewAssistantMessage()
	id := s.StartConversation(true, "q", model.NewUserMessage("q"), ai)
	s.Finalize(id, ai.ID, "answer", []string{"more?"})
	require.True(t, s.Get(id).MessageByID(ai.ID).HasSuggestions())

	assert.True(t, s.ClearSuggestions(ai.ID))
	assert.False(t, s.Get(id).MessageByID(ai.ID).HasSuggestions())
	assert.False(t, s.ClearSuggestions("missing"))
}

func TestFinalize_ArchivesOnlyNormalConversations(t *testing.T) {
	arch := newMemArchiver()
	s := New(WithArchiver(arch))

	ai := model.NewAssistantMessage()
	id := s.StartConversation(false, "q", model.NewUserMessage("q"), ai)
	require.NoError(t, s.BeginStream(id, ai.ID))
	require.True(t, s.Finalize(id, ai.ID, "answer", []string{"next?"}))

	assert.False(t, s.IsActiveStream(id, ai.ID))
	require.Contains(t, arch.saved, id)
	assert.Equal(t, "answer", arch.saved[id].Messages[1].Content)

	eph := model.NewAssistantMessage()
	s.StartConversation(true, "secret", model.NewUserMessage("secret"), eph)
	require.True(t, s.Finalize(EphemeralID, eph.ID, "hidden", nil))
	assert.NotContains(t, arch.saved, EphemeralID)
}

func TestFinalize_ArchiveFailureIsNotFatal(t *testing.T) {
	arch := newMemArchiver()
	arch.fail = errors.New("disk full")
	s := New(WithArchiver(arch))

	ai := model.NewAssistantMessage()
	id := s.StartConversation(false, "q", model.NewUserMessage("q"), ai)
	assert.True(t, s.Finalize(id, ai.ID, "answer", nil))
	assert.False(t, s.Get(id).MessageByID(ai.ID).IsStreaming)
}

// =============================================================================
// STREAM REGISTRY TESTS
// =============================================================================

func TestStreamRegistry(t *testing.T) {
	s := New()
	id := s.Create(false)

	assert.ErrorIs(t, s.BeginStream("missing", "m"), ErrNotFound)

	require.NoError(t, s.BeginStream(id, "m1"))
	assert.ErrorIs(t, s.BeginStream(id, "m2"), ErrStreamInProgress)
	assert.True(t, s.IsActiveStream(id, "m1"))
	assert.False(t, s.IsActiveStream(id, "m2"))

	s.EndStream(id, "m2")
	assert.True(t, s.IsActiveStream(id, "m1"))

	s.EndStream(id, "m1")
	assert.False(t, s.IsActiveStream(id, "m1"))
	assert.NoError(t, s.BeginStream(id, "m2"))
}

func TestDiscardEphemeral_AbandonsStream(t *testing.T) {
	s := New()
	ai := model.NewAssistantMessage()
	s.StartConversation(true, "q", model.NewUserMessage("q"), ai)
	require.NoError(t, s.BeginStream(EphemeralID, ai.ID))

	s.DiscardEphemeral()
	assert.False(t, s.IsActiveStream(EphemeralID, ai.ID))
	assert.False(t, s.UpdateMessageContent(EphemeralID, ai.ID, "late", nil))
}

// =============================================================================
// READ TESTS
// =============================================================================

func TestReadsAreCopies(t *testing.T) {
	s := New()
	id := s.StartConversation(false, "q", model.NewUserMessage("q"))

	snap := s.Active()
	require.NotNil(t, snap)
	snap.Messages[0].Content = "tampered"
	snap.Title = "tampered"

	assert.Equal(t, "q", s.Get(id).Messages[0].Content)
	assert.Equal(t, "q", s.List()[0].Title)
}

func TestLoad(t *testing.T) {
	s := New()
	a := model.NewConversation(false)
	b := model.NewConversation(false)
	eph := model.NewConversation(true)

	s.Load([]*model.Conversation{a, nil, b, eph})
	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.Equal(t, "", s.ActiveID())
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ai := model.NewAssistantMessage()
	id := s.StartConversation(false, "q", model.NewUserMessage("q"), ai)
	require.NoError(t, s.BeginStream(id, ai.ID))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.UpdateMessageContent(id, ai.ID, "x", nil)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.List()
				_ = s.IsActiveStream(id, ai.ID)
			}
		}()
	}
	wg.Wait()
	assert.True(t, s.IsActiveStream(id, ai.ID))
}
