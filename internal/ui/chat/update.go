// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	muse "github.com/jeranaias/muse-tui/internal/chat"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/modes"
	"github.com/jeranaias/muse-tui/internal/store"
)

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.sess.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.sess.Cancel()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.NewConversation):
		m.sess.NewConversation()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if conv := m.view.Current; conv != nil {
			m.sess.Delete(conv.ID)
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PrevChat):
		m.switchConversation(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextChat):
		m.switchConversation(1)
		return m, nil

	case key.Matches(msg, m.keys.Incognito):
		m.sess.ToggleIncognito()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Research):
		m.sess.ToggleResearch()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.SourceScholar):
		return m.selectSource(modes.SourceScholar)

	case key.Matches(msg, m.keys.SourceArxiv):
		return m.selectSource(modes.SourceArxiv)

	case key.Matches(msg, m.keys.SourceWiki):
		return m.selectSource(modes.SourceWiki)

	case key.Matches(msg, m.keys.CopyCode):
		if !m.view.HasCode() {
			return m.setNotice("No code to copy", false)
		}
		return m, copyToClipboard(m.view.Code.Code)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.refresh()
		return m, nil
	}

	if i := m.keys.suggestionIndex(msg); i >= 0 {
		return m.useSuggestion(i)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	err := m.sess.Send(m.ctx, m.input.Value())
	switch {
	case errors.Is(err, muse.ErrEmptyMessage):
		return m, nil
	case err != nil:
		return m.setNotice(friendlyError(err, m.endpoint()), true)
	}

	m.input.Reset()
	m.refresh()
	m.viewport.GotoBottom()
	return m, m.startTicking()
}

func (m Model) useSuggestion(i int) (tea.Model, tea.Cmd) {
	msg := lastAssistant(m.view.Current)
	if msg == nil || i >= len(msg.Suggestions) || m.view.Typing {
		return m, nil
	}

	if err := m.sess.UseSuggestion(m.ctx, msg.ID, msg.Suggestions[i]); err != nil {
		return m.setNotice(friendlyError(err, m.endpoint()), true)
	}
	m.refresh()
	m.viewport.GotoBottom()
	return m, m.startTicking()
}

func (m Model) selectSource(src modes.Source) (tea.Model, tea.Cmd) {
	m.sess.SetResearchSource(src)
	m.refresh()
	return m, nil
}

// switchConversation moves the selection by delta through the sidebar.
func (m *Model) switchConversation(delta int) {
	convs := m.view.Conversations
	if len(convs) == 0 || m.view.Modes.Incognito {
		return
	}

	idx := -1
	for i, c := range convs {
		if c.ID == m.view.ActiveID {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		idx = len(convs) - 1
	default:
		idx = (idx + delta + len(convs)) % len(convs)
	}

	m.sess.Select(convs[idx].ID)
	m.refresh()
	m.viewport.GotoBottom()
}

// =============================================================================
// STREAMING
// =============================================================================

func (m *Model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return frameTickCmd(m.frameInterval)
}

func (m Model) handleFrameTick() (tea.Model, tea.Cmd) {
	if !m.ticking {
		return m, nil
	}

	more := m.sess.Tick()
	m.refresh()
	if !more {
		m.ticking = false
		return m, nil
	}
	return m, frameTickCmd(m.frameInterval)
}

func (m Model) handleEvent(msg EventMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.events.Wait()}

	switch msg.Kind {
	case muse.EventStarted:
		cmds = append(cmds, m.startTicking())
	case muse.EventContent, muse.EventThinking, muse.EventCode:
		// Frame ticks redraw streaming output.
		if m.ticking {
			return m, tea.Batch(cmds...)
		}
	case muse.EventError:
		m.refresh()
		next, cmd := m.setNotice(friendlyError(msg.Err, m.endpoint()), true)
		return next, tea.Batch(append(cmds, cmd)...)
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m Model) setNotice(text string, isErr bool) (Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	return m, clearNoticeCmd(m.noticeSeq)
}

func (m Model) endpoint() string {
	return m.sess.Settings().Model.Endpoint
}

// lastAssistant returns the final assistant message of conv, if any.
func lastAssistant(conv *model.Conversation) *model.Message {
	if conv == nil {
		return nil
	}
	msg := conv.LastMessage()
	if msg == nil || msg.Role != model.RoleAssistant {
		return nil
	}
	return msg
}

// isEphemeral reports whether conv is the incognito conversation.
func isEphemeral(conv *model.Conversation) bool {
	return conv != nil && conv.ID == store.EphemeralID
}
