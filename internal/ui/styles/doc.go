// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the muse TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Gold - brand accent, selections, the assistant name
  - Ivory - user messages
  - Violet - research mode
  - Slate - incognito mode
  - Rose - errors

# Key Types

  - Theme: every lipgloss style the TUI renders with, plus terminal
    capabilities detected through termenv

# Usage

	theme := styles.NewTheme()
	theme.SetSize(msg.Width, msg.Height)
	header := theme.Brand.Render("muse")
*/
package styles
