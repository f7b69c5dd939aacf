// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	muse "github.com/jeranaias/muse-tui/internal/chat"
	"github.com/jeranaias/muse-tui/internal/config"
	"github.com/jeranaias/muse-tui/internal/modes"
	"github.com/jeranaias/muse-tui/internal/ollama"
	"github.com/jeranaias/muse-tui/internal/stream"
	"github.com/jeranaias/muse-tui/internal/ui/components"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
)

type scriptSource struct {
	mu       sync.Mutex
	chunks   []string
	requests []*ollama.ChatRequest
}

func (s *scriptSource) ChatStream(ctx context.Context, req *ollama.ChatRequest, cb ollama.StreamCallback) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	chunks := append([]string(nil), s.chunks...)
	s.mu.Unlock()

	for _, c := range chunks {
		cb(ollama.StreamChunk{Content: c})
	}
	cb(ollama.StreamChunk{Done: true})
	return nil
}

func (s *scriptSource) lastUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.requests[len(s.requests)-1].Messages
	return msgs[len(msgs)-1].Content
}

func newTestModel(t *testing.T, src *scriptSource) (Model, *muse.Session) {
	t.Helper()
	cfg := config.Default()
	cfg.Stream.FrameIntervalMs = 1

	events := NewEvents(1024)
	sess := muse.New(muse.Options{
		Config:         cfg,
		Source:         src,
		Notify:         events.Notify,
		ExternalFrames: true,
	})
	t.Cleanup(sess.Close)

	m := New(Options{
		Session:       sess,
		Events:        events,
		Theme:         styles.NewTheme(),
		MarkdownStyle: components.StylePlain,
		FrameInterval: time.Millisecond,
	})
	m = update(m, tea.WindowSizeMsg{Width: 140, Height: 40})
	return m, sess
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func typeText(m Model, text string) Model {
	return update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// drain runs frame ticks until the stream finishes.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for m.Ticking() {
		require.True(t, time.Now().Before(deadline), "stream did not finish")
		m = update(m, FrameTickMsg(time.Now()))
		time.Sleep(time.Millisecond)
	}
	return m
}

func TestSendStreamsIntoView(t *testing.T) {
	src := &scriptSource{chunks: []string{"Hello there, ", "traveller.", "[SUGGESTIONS] Q1: Why? | Q2: How?"}}
	m, sess := newTestModel(t, src)

	m = typeText(m, "greet me")
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.Ticking())
	assert.Empty(t, m.input.Value())

	m = drain(t, m)
	assert.False(t, sess.Streaming())

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "traveller.")
	assert.Contains(t, out, "F1")
	assert.Contains(t, out, "Why?")
	assert.NotContains(t, out, "[SUGGESTIONS]")
	assert.Contains(t, out, "greet me")
}

func TestEmptyEnterIsIgnored(t *testing.T) {
	m, sess := newTestModel(t, &scriptSource{})
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Ticking())
	assert.Empty(t, sess.Conversations())
}

func TestSuggestionKeySendsFollowUp(t *testing.T) {
	src := &scriptSource{chunks: []string{"Paris.[SUGGESTIONS] Q1: Why Paris? | Q2: Population?"}}
	m, sess := newTestModel(t, src)

	m = typeText(m, "Capital of France?")
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m)

	m = update(m, tea.KeyMsg{Type: tea.KeyF2})
	require.True(t, m.Ticking())
	m = drain(t, m)

	assert.Equal(t, "Population?", src.lastUser())
	conv := sess.CurrentConversation()
	require.Len(t, conv.Messages, 4)
	assert.Empty(t, conv.Messages[1].Suggestions)
}

func TestModeKeys(t *testing.T) {
	m, sess := newTestModel(t, &scriptSource{})

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.True(t, sess.Modes().Incognito)
	assert.Contains(t, ansi.Strip(m.View()), "INCOGNITO")

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}, Alt: true})
	got := sess.Modes()
	assert.True(t, got.Research)
	assert.Equal(t, modes.SourceArxiv, got.Source)
	assert.False(t, got.Incognito, "choosing a source leaves incognito")
	assert.Contains(t, ansi.Strip(m.View()), "RESEARCH · ArXiv")

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.False(t, sess.Modes().Research)
}

func TestConversationKeys(t *testing.T) {
	m, sess := newTestModel(t, &scriptSource{})

	first := sess.NewConversation()
	second := sess.NewConversation()
	m = update(m, EventMsg{Event: muse.Event{Kind: muse.EventConversations}})
	require.Equal(t, second, m.ViewState().ActiveID)

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlDown})
	assert.Equal(t, first, sess.View().ActiveID)

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlUp})
	assert.Equal(t, second, sess.View().ActiveID)

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Len(t, sess.Conversations(), 1)
	assert.Empty(t, sess.View().ActiveID)

	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Len(t, sess.Conversations(), 2)
}

func TestCopyWithoutCode(t *testing.T) {
	m, _ := newTestModel(t, &scriptSource{})
	m = update(m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Contains(t, ansi.Strip(m.View()), "No code to copy")
}

func TestCodePanelShownWhenWide(t *testing.T) {
	src := &scriptSource{chunks: []string{"Here:\n```go\nfmt.Println(\"hi\")\n```"}}
	m, _ := newTestModel(t, src)

	m = typeText(m, "print hi")
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m)

	require.True(t, m.ViewState().HasCode())
	out := ansi.Strip(m.View())
	assert.Contains(t, out, "go")
	assert.Contains(t, out, `fmt.Println("hi")`)
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t, &scriptSource{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestEventsNeverBlock(t *testing.T) {
	ev := NewEvents(1)
	ev.Notify(muse.Event{Kind: muse.EventStarted})
	ev.Notify(muse.Event{Kind: muse.EventFinished})

	msg := ev.Wait()()
	got, ok := msg.(EventMsg)
	require.True(t, ok)
	assert.Equal(t, muse.EventStarted, got.Kind)
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ollama.ErrNotRunning, "Ollama is not reachable at http://x"},
		{ollama.ErrModelNotFound, "Model not installed; try `ollama pull`"},
		{ollama.ErrTimeout, "The model took too long to answer"},
		{stream.ErrStalled, "The answer stalled and was stopped"},
		{muse.ErrBusy, "Muse is still answering"},
		{errors.New("odd"), "odd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, friendlyError(tt.err, "http://x"))
	}
}
