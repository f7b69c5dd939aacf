// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Gold - Brand accent, selections, assistant name
var Gold = lipgloss.AdaptiveColor{Light: "#A16207", Dark: "#E6C36A"}

// GoldDeep - Selected sidebar row background
var GoldDeep = lipgloss.AdaptiveColor{Light: "#FDE68A", Dark: "#5C4813"}

// Violet - Research mode
var Violet = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Slate - Incognito mode
var Slate = lipgloss.AdaptiveColor{Light: "#475569", Dark: "#94A3B8"}

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Emerald - Copy confirmations
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

// Surface - Main background
var Surface = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#16161E"}

// SurfaceDim - Sidebar, status line, code panel
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F4", Dark: "#1F1F2A"}

// Overlay - Borders and separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E7E5E4", Dark: "#2E2E3E"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1C1917", Dark: "#E7E5E4"}

// TextSecondary - Labels
var TextSecondary = lipgloss.AdaptiveColor{Light: "#57534E", Dark: "#A8A29E"}

// TextMuted - Hints and timestamps
var TextMuted = lipgloss.AdaptiveColor{Light: "#A8A29E", Dark: "#6B6B7B"}

// TextInverse - Text on colored backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#16161E"}

// Ivory - User message text
var Ivory = lipgloss.AdaptiveColor{Light: "#292524", Dark: "#FAF7F0"}
