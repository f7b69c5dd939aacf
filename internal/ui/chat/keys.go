// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Send            key.Binding
	Newline         key.Binding
	Cancel          key.Binding
	Quit            key.Binding
	NewConversation key.Binding
	Delete          key.Binding
	PrevChat        key.Binding
	NextChat        key.Binding
	Incognito       key.Binding
	Research        key.Binding
	SourceScholar   key.Binding
	SourceArxiv     key.Binding
	SourceWiki      key.Binding
	Suggestion1     key.Binding
	Suggestion2     key.Binding
	Suggestion3     key.Binding
	CopyCode        key.Binding
	PageUp          key.Binding
	PageDown        key.Binding
	Help            key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop answer"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		NewConversation: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete chat"),
		),
		PrevChat: key.NewBinding(
			key.WithKeys("ctrl+up"),
			key.WithHelp("C-up", "previous chat"),
		),
		NextChat: key.NewBinding(
			key.WithKeys("ctrl+down"),
			key.WithHelp("C-down", "next chat"),
		),
		Incognito: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "incognito"),
		),
		Research: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "research"),
		),
		SourceScholar: key.NewBinding(
			key.WithKeys("alt+1"),
			key.WithHelp("M-1", "scholar"),
		),
		SourceArxiv: key.NewBinding(
			key.WithKeys("alt+2"),
			key.WithHelp("M-2", "arxiv"),
		),
		SourceWiki: key.NewBinding(
			key.WithKeys("alt+3"),
			key.WithHelp("M-3", "wikipedia"),
		),
		Suggestion1: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1-F3", "ask suggestion"),
		),
		Suggestion2: key.NewBinding(key.WithKeys("f2")),
		Suggestion3: key.NewBinding(key.WithKeys("f3")),
		CopyCode: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy code"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "help"),
		),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewConversation, k.Incognito, k.Research, k.Help, k.Quit}
}

// FullHelp returns the bindings shown when help is expanded.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.Cancel, k.Quit},
		{k.NewConversation, k.Delete, k.PrevChat, k.NextChat},
		{k.Incognito, k.Research, k.SourceScholar, k.SourceArxiv, k.SourceWiki},
		{k.Suggestion1, k.CopyCode, k.PageUp, k.PageDown, k.Help},
	}
}

// suggestionIndex maps F1-F3 to a suggestion slot, or -1.
func (k KeyMap) suggestionIndex(msg tea.KeyMsg) int {
	switch {
	case key.Matches(msg, k.Suggestion1):
		return 0
	case key.Matches(msg, k.Suggestion2):
		return 1
	case key.Matches(msg, k.Suggestion3):
		return 2
	}
	return -1
}
