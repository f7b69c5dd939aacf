// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extract pulls structured pieces out of assistant text.
//
// Every function here is pure and safe to call repeatedly on growing
// prefixes of the same response, which is how the display scheduler uses
// them while a stream is still arriving.
//
// # Key Functions
//
//   - ExtractLastCodeBlock: the last fenced code block, open or closed
//   - SplitSuggestions: visible text vs. the trailing suggestions directive
//   - HoldPartialDelimiter: withholds a half-typed directive marker
//
// # Usage
//
//	split := extract.SplitSuggestions(text)
//	if block, ok := extract.ExtractLastCodeBlock(split.Visible); ok {
//	    fmt.Println(block.Language, block.Code)
//	}
package extract
