// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	muse "github.com/jeranaias/muse-tui/internal/chat"
	"github.com/jeranaias/muse-tui/internal/ui/components"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
)

// Layout constants.
const (
	sidebarWidth = 28
	inputHeight  = 3
	minPaneWidth = 24
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat view.
type Options struct {
	// Session must be created with ExternalFrames and Notify set to
	// Events.Notify.
	Session *muse.Session
	Events  *Events
	Theme   *styles.Theme

	// MarkdownStyle is passed to components.NewMarkdown.
	MarkdownStyle string

	// FrameInterval paces Session.Tick while an answer streams.
	FrameInterval time.Duration

	// Context bounds every request sent from the view.
	Context context.Context
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	sess   *muse.Session
	events *Events
	ctx    context.Context

	// Styling
	theme    *styles.Theme
	markdown *components.Markdown
	code     components.CodePanel

	// Widgets
	keys     KeyMap
	help     help.Model
	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	// Dimensions
	width  int
	height int

	// view is the latest session snapshot.
	view muse.ViewState

	frameInterval time.Duration
	ticking       bool

	notice    string
	noticeErr bool
	noticeSeq int
}

// New creates the chat view.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	events := opts.Events
	if events == nil {
		events = NewEvents(256)
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	interval := opts.FrameInterval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask Muse anything..."
	ta.Prompt = "› "
	ta.ShowLineNumbers = false
	ta.CharLimit = 16000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		sess:          opts.Session,
		events:        events,
		ctx:           ctx,
		theme:         theme,
		markdown:      components.NewMarkdown(opts.MarkdownStyle),
		code:          components.NewCodePanel(theme),
		keys:          keys,
		help:          help.New(),
		input:         ta,
		viewport:      viewport.New(80, 20),
		spinner:       sp,
		width:         80,
		height:        24,
		frameInterval: interval,
	}
	if theme.Width == 0 {
		theme.SetSize(m.width, m.height)
	}
	m.refresh()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts cursor blink, the spinner, and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.events.Wait())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case EventMsg:
		return m.handleEvent(msg)

	case FrameTickMsg:
		return m.handleFrameTick()

	case CopiedMsg:
		if msg.Err != nil {
			return m.setNotice("Copy failed: "+msg.Err.Error(), true)
		}
		return m.setNotice("Copied code to clipboard", false)

	case noticeClearMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.view.Thinking || m.view.Researching {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat view.
func (m Model) View() string {
	return m.render()
}

// Ticking reports whether the frame tick is running.
func (m Model) Ticking() bool {
	return m.ticking
}

// ViewState returns the snapshot the model last rendered.
func (m Model) ViewState() muse.ViewState {
	return m.view
}
