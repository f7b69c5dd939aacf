// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	muse "github.com/jeranaias/muse-tui/internal/chat"
)

// =============================================================================
// SESSION EVENTS
// =============================================================================

// Events carries session notifications into the Bubble Tea loop. Notify
// never blocks: the session calls it from inside Update when frames are
// driven by the tick, and a full buffer only loses a redraw hint.
type Events struct {
	ch chan muse.Event
}

// NewEvents creates an event channel with the given buffer.
func NewEvents(size int) *Events {
	if size < 1 {
		size = 1
	}
	return &Events{ch: make(chan muse.Event, size)}
}

// Notify queues ev. Use it as chat.Options.Notify.
func (e *Events) Notify(ev muse.Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

// Wait returns a command that delivers the next event.
func (e *Events) Wait() tea.Cmd {
	return func() tea.Msg {
		return EventMsg{Event: <-e.ch}
	}
}

// EventMsg wraps a session event.
type EventMsg struct {
	muse.Event
}

// =============================================================================
// FRAME AND UI MESSAGES
// =============================================================================

// FrameTickMsg steps the streaming scheduler.
type FrameTickMsg time.Time

func frameTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return FrameTickMsg(t)
	})
}

// CopiedMsg reports the result of a clipboard copy.
type CopiedMsg struct {
	Runes int
	Err   error
}

// noticeClearMsg hides a transient notice if it is still the current one.
type noticeClearMsg struct {
	seq int
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return noticeClearMsg{seq: seq}
	})
}
