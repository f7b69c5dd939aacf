// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/muse-tui/internal/extract"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
)

// =============================================================================
// CODE PANEL
// =============================================================================

// CodePanel renders the live code preview beside the conversation.
type CodePanel struct {
	theme *styles.Theme
}

// NewCodePanel creates a code panel.
func NewCodePanel(theme *styles.Theme) CodePanel {
	return CodePanel{theme: theme}
}

// Render draws block in a bordered box of the given outer size. Lines beyond
// the height show the tail of the code, where streaming happens.
func (c CodePanel) Render(block extract.CodeBlock, width, height int) string {
	if width < 12 {
		width = 12
	}
	inner := width - 4 // border + padding
	bodyHeight := height - 3
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	lang := extract.NormalizeLanguage(block.Language)
	header := c.theme.CodeLangBadge.Render(lang)

	lines := strings.Split(block.Code, "\n")
	first := 0
	if len(lines) > bodyHeight {
		first = len(lines) - bodyHeight
		lines = lines[first:]
	}

	numWidth := 4
	codeWidth := inner - numWidth - 1
	if codeWidth < 4 {
		codeWidth = 4
	}
	for i, line := range lines {
		lines[i] = runewidth.Truncate(expandTabs(line), codeWidth, "…")
	}

	highlighted := strings.Split(Highlight(strings.Join(lines, "\n"), lang, c.theme.NoColor()), "\n")
	rendered := make([]string, 0, len(highlighted))
	for i, line := range highlighted {
		num := c.theme.CodeLineNum.Render(strconv.Itoa(first + i + 1))
		rendered = append(rendered, num+line)
	}

	return c.theme.CodePanel.
		Width(width - 2).
		Render(header + "\n" + strings.Join(rendered, "\n"))
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// Highlight applies terminal syntax highlighting to code. With plain set, or
// when highlighting fails, code is returned unchanged.
func Highlight(code, language string, plain bool) string {
	if plain || code == "" {
		return code
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
