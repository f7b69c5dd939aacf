// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package modes

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SYSTEM PROMPTS
// =============================================================================

const (
	// DefaultPersona is used unless the user configured an override.
	DefaultPersona = "You are Muse, a luxury AI. Answer with extreme speed. " +
		"Use plain text unless asked for code. For math, use LaTeX ($...$). Elite aesthetics only."

	// SuggestionsInstruction asks the model for the follow-up trailer.
	SuggestionsInstruction = "IMPORTANT: At the very end of your response, provide exactly 3 brief " +
		"follow-up questions for the user, prefixed with [SUGGESTIONS] and separated by |. " +
		"Example: [SUGGESTIONS] Q1 | Q2 | Q3"

	researchPromptFormat = "Elite Investigative Journalist. Summarize abstracts from 3-5 results " +
		"from %s. Focus on speed. Provide 3+ direct links."
)

// SystemPrompt builds the system prompt for the next request. In research
// mode the journalist prompt replaces the persona and carries no
// suggestions trailer.
func SystemPrompt(m Modes, override string) string {
	if m.Research {
		return fmt.Sprintf(researchPromptFormat, m.Source.promptName())
	}

	persona := strings.TrimSpace(override)
	if persona == "" {
		persona = DefaultPersona
	}
	return persona + "\n\n" + SuggestionsInstruction
}

// =============================================================================
// RESEARCH STAGING
// =============================================================================

// Stage is one status line of the research sequence.
type Stage struct {
	Source Source // SourceNone for the synthesis stage
	Status string
	Delay  time.Duration
}

// ResearchPlan returns the status sequence shown before a research answer:
// a search and a scrape stage per source, then synthesis. With no source
// selected every source is visited.
func ResearchPlan(src Source, delay time.Duration) []Stage {
	sources := []Source{src}
	if src == SourceNone {
		sources = []Source{SourceWiki, SourceScholar, SourceArxiv}
	}

	plan := make([]Stage, 0, 2*len(sources)+1)
	for _, s := range sources {
		name := s.DisplayName()
		plan = append(plan,
			Stage{Source: s, Status: "Searching " + name + "...", Delay: delay},
			Stage{Source: s, Status: "Scraping " + name + " data...", Delay: delay},
		)
	}
	return append(plan, Stage{Status: "Synthesizing report...", Delay: delay})
}

// RunPlan reports each stage to show and waits its delay. It returns
// ctx's error if cancelled part way.
func RunPlan(ctx context.Context, plan []Stage, show func(Stage)) error {
	for _, stage := range plan {
		if show != nil {
			show(stage)
		}
		if stage.Delay <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		timer := time.NewTimer(stage.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
