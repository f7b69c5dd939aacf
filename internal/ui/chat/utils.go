// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	muse "github.com/jeranaias/muse-tui/internal/chat"
	"github.com/jeranaias/muse-tui/internal/ollama"
	"github.com/jeranaias/muse-tui/internal/stream"
)

// copyToClipboard copies text to the system clipboard off the UI goroutine.
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return CopiedMsg{
			Runes: utf8.RuneCountInString(text),
			Err:   clipboard.WriteAll(text),
		}
	}
}

// truncate shortens s to width display columns.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// friendlyError turns session and client errors into a status line.
func friendlyError(err error, endpoint string) string {
	switch {
	case err == nil:
		return ""
	case ollama.IsNotRunning(err):
		return "Ollama is not reachable at " + endpoint
	case ollama.IsModelNotFound(err):
		return "Model not installed; try `ollama pull`"
	case ollama.IsTimeout(err):
		return "The model took too long to answer"
	case errors.Is(err, stream.ErrStalled):
		return "The answer stalled and was stopped"
	case errors.Is(err, muse.ErrBusy):
		return "Muse is still answering"
	default:
		return err.Error()
	}
}
