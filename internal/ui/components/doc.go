// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable renderers for the muse TUI.
//
// # Key Types
//
//   - CodePanel: syntax-highlighted preview of the latest code block (chroma)
//   - Markdown: cached glamour rendering of finished answers
//
// # Usage
//
//	md := components.NewMarkdown(components.StyleAuto)
//	md.SetWidth(80)
//	out := md.Render(msg.Content)
//
//	panel := components.NewCodePanel(theme)
//	out = panel.Render(view.Code, 60, 20)
package components
