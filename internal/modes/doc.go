// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package modes holds the incognito and research toggles and the system
// prompt they shape.
//
// The two modes are mutually exclusive: turning one on turns the other off.
// Research mode can be narrowed to a single Source; choosing a source turns
// research on, and leaving research clears the source.
//
// # Key Types
//
//   - Modes: the current toggle values
//   - Controller: applies transitions, safe for concurrent use
//   - Source: research source (Scholar, Arxiv, Wiki)
//   - Stage: one step of the research status sequence
//
// # Usage
//
//	ctrl := modes.NewController()
//	ctrl.SetResearchSource(modes.SourceArxiv)
//	prompt := modes.SystemPrompt(ctrl.Modes(), override)
//	modes.RunPlan(ctx, modes.ResearchPlan(ctrl.Modes().Source, 1500*time.Millisecond), show)
package modes
