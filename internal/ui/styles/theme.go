// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header lipgloss.Style
	Brand  lipgloss.Style
	Title  lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarHeading  lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarEmpty    lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserName      lipgloss.Style
	UserText      lipgloss.Style
	AssistantName lipgloss.Style
	AssistantText lipgloss.Style
	Thinking      lipgloss.Style
	Suggestion    lipgloss.Style
	SuggestionKey lipgloss.Style
	Empty         lipgloss.Style

	// ==========================================================================
	// CODE PANEL
	// ==========================================================================

	CodePanel     lipgloss.Style
	CodeLangBadge lipgloss.Style
	CodeLineNum   lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	StatusBar      lipgloss.Style
	ModeIncognito  lipgloss.Style
	ModeResearch   lipgloss.Style
	ModeNormal     lipgloss.Style
	ResearchStatus lipgloss.Style
	Spinner        lipgloss.Style
	Notice         lipgloss.Style
	Error          lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// NoColor reports whether the terminal renders no colors at all.
func (t *Theme) NoColor() bool {
	return t.ColorProfile == termenv.Ascii
}

func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.Brand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Gold)

	t.Title = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarHeading = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true).
		MarginBottom(1)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SidebarSelected = lipgloss.NewStyle().
		Foreground(Gold).
		Background(GoldDeep).
		Bold(true)

	t.SidebarEmpty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Messages
	t.UserName = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.UserText = lipgloss.NewStyle().
		Foreground(Ivory).
		PaddingLeft(2)

	t.AssistantName = lipgloss.NewStyle().
		Foreground(Gold).
		Bold(true)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.Suggestion = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.SuggestionKey = lipgloss.NewStyle().
		Foreground(Gold).
		Bold(true).
		PaddingLeft(2)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Align(lipgloss.Center)

	// Code panel
	t.CodePanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.CodeLangBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Gold).
		Padding(0, 1).
		Bold(true)

	t.CodeLineNum = lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ModeIncognito = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Slate).
		Padding(0, 1).
		Bold(true)

	t.ModeResearch = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Violet).
		Padding(0, 1).
		Bold(true)

	t.ModeNormal = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ResearchStatus = lipgloss.NewStyle().
		Foreground(Violet).
		Italic(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Gold)

	t.Notice = lipgloss.NewStyle().
		Foreground(Emerald)

	t.Error = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 110 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns: no sidebar
	LayoutMedium                   // 60-110 columns: sidebar, no code panel
	LayoutWide                     // >= 110 columns: sidebar and code panel
)
