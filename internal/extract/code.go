// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// DefaultLanguage is reported for fences without a language tag.
const DefaultLanguage = "text"

// codeFence matches an opening fence, its optional language tag and newline,
// then the body up to a closing fence or the end of the text. The lazy body
// plus the end anchor is what lets an unterminated block still match.
var codeFence = regexp.MustCompile("(?s)```([\\w+#.-]*)\\n(.*?)(?:```|$)")

// CodeBlock is a fenced code region.
type CodeBlock struct {
	Code     string
	Language string
}

// ExtractLastCodeBlock returns the last fenced code block in text. Later
// blocks supersede earlier ones. A block still being streamed (no closing
// fence yet) counts. ok is false when text contains no fence at all.
func ExtractLastCodeBlock(text string) (CodeBlock, bool) {
	matches := codeFence.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return CodeBlock{}, false
	}

	last := matches[len(matches)-1]
	lang := last[1]
	if lang == "" {
		lang = DefaultLanguage
	}
	return CodeBlock{
		Code:     strings.TrimSpace(last[2]),
		Language: lang,
	}, true
}

// NormalizeLanguage maps a fence tag ("py", "golang", "sh") to the canonical
// lexer name known to chroma. Unknown tags are returned lowercased.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == DefaultLanguage {
		return DefaultLanguage
	}
	if l := lexers.Get(lang); l != nil {
		if cfg := l.Config(); cfg != nil && cfg.Name != "" {
			return strings.ToLower(cfg.Name)
		}
	}
	return lang
}
