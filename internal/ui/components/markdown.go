// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Glamour style selectors.
const (
	StyleAuto  = "auto"
	StylePlain = "notty"
)

// maxCached bounds the rendered-answer cache.
const maxCached = 256

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders finished answers with glamour. Results are cached per
// content until the width changes. Not safe for concurrent use; the TUI
// renders from one goroutine.
type Markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

// NewMarkdown creates a renderer using style (StyleAuto, StylePlain, or a
// glamour standard style name such as "dark").
func NewMarkdown(style string) *Markdown {
	if style == "" {
		style = StyleAuto
	}
	return &Markdown{style: style, width: 80, cache: make(map[string]string)}
}

// SetWidth sets the word-wrap width. Changing it drops the cache.
func (m *Markdown) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == m.width && m.renderer != nil {
		return
	}
	m.width = width
	m.renderer = nil
	m.cache = make(map[string]string)
}

// Render returns content as styled terminal text. If glamour fails the
// content is returned unchanged.
func (m *Markdown) Render(content string) string {
	if content == "" {
		return ""
	}
	if out, ok := m.cache[content]; ok {
		return out
	}
	if m.renderer == nil {
		r, err := m.newRenderer()
		if err != nil {
			return content
		}
		m.renderer = r
	}

	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")

	if len(m.cache) >= maxCached {
		m.cache = make(map[string]string)
	}
	m.cache[content] = out
	return out
}

func (m *Markdown) newRenderer() (*glamour.TermRenderer, error) {
	style := glamour.WithStandardStyle(m.style)
	if m.style == StyleAuto {
		style = glamour.WithAutoStyle()
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(m.width))
}
