// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// Delimiter introduces the suggestions directive the model appends to
	// every answer. Everything after it is metadata, never display text.
	Delimiter = "[SUGGESTIONS]"

	// Separator splits individual suggestions inside the directive.
	Separator = "|"

	// MaxSuggestions caps how many follow-ups are surfaced.
	MaxSuggestions = 3

	// MaxSuggestionLen is the exclusive upper bound, in characters, for a
	// single suggestion. Longer entries are dropped, not truncated.
	MaxSuggestionLen = 100
)

// enumerationPrefix strips "Q1:", "q2." style numbering.
var enumerationPrefix = regexp.MustCompile(`(?i)^Q\d+[:.]\s*`)

// Split is the result of separating display text from the directive.
type Split struct {
	Visible     string
	Suggestions []string
}

// HasSuggestions reports whether any suggestion survived filtering.
func (s Split) HasSuggestions() bool {
	return len(s.Suggestions) > 0
}

// SplitSuggestions separates text into the visible answer and the follow-up
// suggestions carried after Delimiter. Without a delimiter the whole text
// (trimmed) is visible and there are no suggestions. A partially typed
// delimiter at the end is treated as ordinary text; a later call on the
// longer prefix resolves it.
func SplitSuggestions(text string) Split {
	before, after, found := strings.Cut(text, Delimiter)
	split := Split{Visible: strings.TrimSpace(before)}
	if !found {
		return split
	}

	// A repeated delimiter ends the payload.
	payload, _, _ := strings.Cut(after, Delimiter)
	for _, part := range strings.Split(payload, Separator) {
		s := enumerationPrefix.ReplaceAllString(strings.TrimSpace(part), "")
		n := utf8.RuneCountInString(s)
		if n == 0 || n >= MaxSuggestionLen {
			continue
		}
		split.Suggestions = append(split.Suggestions, s)
		if len(split.Suggestions) == MaxSuggestions {
			break
		}
	}
	return split
}

// StreamingVisible returns the part of a growing response that may be shown
// while it streams: everything before Delimiter, untrimmed, minus a trailing
// partial delimiter.
func StreamingVisible(text string) string {
	before, _, _ := strings.Cut(text, Delimiter)
	return HoldPartialDelimiter(before)
}

// HoldPartialDelimiter drops a trailing proper prefix of Delimiter ("[", "[SUG",
// ...) from text. While a response streams, the tail might be the start of the
// directive; showing it would flash metadata on screen for a frame.
func HoldPartialDelimiter(text string) string {
	max := len(Delimiter) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, Delimiter[:n]) {
			return text[:len(text)-n]
		}
	}
	return text
}
