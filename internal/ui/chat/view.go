// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/modes"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
)

// =============================================================================
// LAYOUT
// =============================================================================

type layout struct {
	sidebar  int // 0 when hidden
	pane     int
	code     int // 0 when hidden
	body     int
	showHelp bool
}

func (m Model) layout() layout {
	var l layout

	mode := m.theme.GetLayoutMode()
	if mode != styles.LayoutNarrow {
		l.sidebar = sidebarWidth
	}
	rest := m.width - l.sidebar
	if mode == styles.LayoutWide && m.view.HasCode() {
		l.code = rest * 2 / 5
	}
	l.pane = rest - l.code
	if l.pane < minPaneWidth {
		l.pane = minPaneWidth
	}

	// header + input border + input + status line
	used := 1 + 1 + inputHeight + 1
	if m.help.ShowAll {
		used += lipgloss.Height(m.help.View(m.keys))
	}
	l.body = m.height - used
	if l.body < 3 {
		l.body = 3
	}
	return l
}

// refresh re-reads the session and re-renders the conversation into the
// viewport, following the bottom when the user had not scrolled away.
func (m *Model) refresh() {
	if m.sess != nil {
		m.view = m.sess.View()
	}
	l := m.layout()

	follow := m.viewport.AtBottom() || m.view.Typing
	m.viewport.Width = l.pane
	m.viewport.Height = l.body
	m.input.SetWidth(m.width - 2)
	m.help.Width = m.width
	m.markdown.SetWidth(l.pane - 4)

	m.viewport.SetContent(m.renderMessages(l.pane))
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// RENDER
// =============================================================================

func (m Model) render() string {
	l := m.layout()

	body := m.viewport.View()
	if l.sidebar > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(l.sidebar, l.body), body)
	}
	if l.code > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.code.Render(m.view.Code, l.code, l.body))
	}

	sections := []string{
		m.renderHeader(),
		body,
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderStatus(),
	}
	if m.help.ShowAll {
		sections = append(sections, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := "New conversation"
	switch {
	case m.view.Modes.Incognito || isEphemeral(m.view.Current):
		title = "Incognito"
	case m.view.Current != nil:
		title = m.view.Current.Title
	}

	left := m.theme.Brand.Render("muse") + "  " + m.theme.Title.Render(title)
	right := m.theme.Title.Render(m.view.Model)
	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderSidebar(width, height int) string {
	inner := width - 3 // border + padding
	lines := []string{m.theme.SidebarHeading.Render("CONVERSATIONS")}

	if len(m.view.Conversations) == 0 {
		lines = append(lines, m.theme.SidebarEmpty.Render("none yet"))
	}
	for _, c := range m.view.Conversations {
		title := truncate(c.Title, inner-2)
		if c.ID == m.view.ActiveID && !m.view.Modes.Incognito {
			lines = append(lines, m.theme.SidebarSelected.Width(inner).Render("▸ "+title))
			continue
		}
		lines = append(lines, m.theme.SidebarItem.Render("  "+title))
	}

	return m.theme.Sidebar.
		Width(width - 1).
		Height(height).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderMessages(width int) string {
	conv := m.view.Current
	if conv == nil || conv.IsEmpty() {
		hint := "Ask Muse anything."
		if m.view.Modes.Incognito {
			hint = "Incognito: nothing you ask here is kept."
		}
		return m.theme.Empty.Width(width).Render("\n\n" + hint)
	}

	var parts []string
	for i, msg := range conv.Messages {
		last := i == len(conv.Messages)-1
		parts = append(parts, m.renderMessage(msg, width, last))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderMessage(msg *model.Message, width int, last bool) string {
	if msg.Role == model.RoleUser {
		return m.theme.UserName.Render(m.view.UserName) + "\n" +
			m.theme.UserText.Width(width-2).Render(msg.Content)
	}

	var b strings.Builder
	b.WriteString(m.theme.AssistantName.Render("Muse"))
	b.WriteString("\n")

	switch {
	case msg.IsStreaming:
		if msg.Content != "" {
			b.WriteString(m.theme.AssistantText.Width(width - 2).Render(msg.Content))
		}
		if status := m.streamStatus(); status != "" {
			if msg.Content != "" {
				b.WriteString("\n")
			}
			b.WriteString(m.theme.Thinking.Render(status))
		}
	default:
		b.WriteString(m.markdown.Render(msg.Content))
	}

	if last && !m.view.Typing && len(msg.Suggestions) > 0 {
		b.WriteString("\n")
		for i, s := range msg.Suggestions {
			if i >= 3 {
				break
			}
			b.WriteString("\n")
			b.WriteString(m.theme.SuggestionKey.Render(fmt.Sprintf("F%d", i+1)))
			b.WriteString(" ")
			b.WriteString(m.theme.Suggestion.Render(truncate(s, width-8)))
		}
	}
	return b.String()
}

// streamStatus is the indicator under a streaming answer.
func (m Model) streamStatus() string {
	switch {
	case m.view.Researching && m.view.ResearchStatus != "":
		return m.spinner.View() + " " + m.view.ResearchStatus
	case m.view.Thinking:
		return m.spinner.View() + " thinking..."
	}
	return ""
}

func (m Model) renderStatus() string {
	var badges []string
	v := m.view
	if v.Modes.Incognito {
		badges = append(badges, m.theme.ModeIncognito.Render("INCOGNITO"))
	}
	if v.Modes.Research {
		label := "RESEARCH"
		if v.Modes.Source != modes.SourceNone {
			label += " · " + v.Modes.Source.DisplayName()
		}
		badges = append(badges, m.theme.ModeResearch.Render(label))
	}
	if len(badges) == 0 {
		badges = append(badges, m.theme.ModeNormal.Render("normal"))
	}

	left := strings.Join(badges, " ")
	switch {
	case m.notice != "" && m.noticeErr:
		left += "  " + m.theme.Error.Render("✗ "+m.notice)
	case m.notice != "":
		left += "  " + m.theme.Notice.Render(m.notice)
	case v.Researching && v.ResearchStatus != "":
		left += "  " + m.theme.ResearchStatus.Render(v.ResearchStatus)
	}

	right := ""
	if !m.help.ShowAll {
		right = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		right = ""
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
