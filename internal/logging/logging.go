// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by muse components.
//
// There is no package-level logger. main builds one with New and hands it
// down; components derive their own with WithPrefix. While the TUI owns the
// terminal, logs go to a file or nowhere so they cannot corrupt the screen.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// File appends logs to this path. Empty writes to Fallback.
	File string

	// Fallback receives logs when File is empty. Nil discards them.
	Fallback io.Writer
}

// ParseLevel converts a level name to a log.Level. Unknown names are an
// error so config validation and flags agree.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a logger. The returned closer releases the log file, if any,
// and is always safe to call.
func New(opts Options) (*log.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nopCloser{}, err
	}

	var out io.Writer = io.Discard
	var closer io.Closer = nopCloser{}
	switch {
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	case opts.Fallback != nil:
		out = opts.Fallback
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: opts.File != "",
		TimeFormat:      time.RFC3339,
	})
	logger.SetStyles(styles())
	return logger, closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// styles gives levels a badge look in terminals; files get plain text
// because the logger detects a non-TTY writer.
func styles() *log.Styles {
	s := log.DefaultStyles()
	badge := func(label, bg string) lipgloss.Style {
		return lipgloss.NewStyle().
			SetString(label).
			Padding(0, 1, 0, 1).
			Background(lipgloss.Color(bg)).
			Foreground(lipgloss.Color("15"))
	}
	s.Levels[log.DebugLevel] = badge("DEBUG", "240")
	s.Levels[log.InfoLevel] = badge("INFO", "33")
	s.Levels[log.WarnLevel] = badge("WARN", "214")
	s.Levels[log.ErrorLevel] = badge("ERROR", "196")

	s.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Values["err"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	return s
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
