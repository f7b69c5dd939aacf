// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package modes

import (
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// SOURCE
// =============================================================================

// Source is a research source.
type Source int

const (
	SourceNone Source = iota
	SourceScholar
	SourceArxiv
	SourceWiki
)

// AllSources lists the selectable sources in display order.
var AllSources = []Source{SourceScholar, SourceArxiv, SourceWiki}

// String returns the short identifier used in config and flags.
func (s Source) String() string {
	switch s {
	case SourceScholar:
		return "scholar"
	case SourceArxiv:
		return "arxiv"
	case SourceWiki:
		return "wiki"
	default:
		return "none"
	}
}

// DisplayName returns the name shown in research status lines.
func (s Source) DisplayName() string {
	switch s {
	case SourceScholar:
		return "Google Scholar"
	case SourceArxiv:
		return "ArXiv"
	case SourceWiki:
		return "Wikipedia"
	default:
		return ""
	}
}

// promptName returns the name used inside the research system prompt.
func (s Source) promptName() string {
	switch s {
	case SourceScholar:
		return "Scholar"
	case SourceArxiv:
		return "ArXiv"
	case SourceWiki:
		return "Wikipedia"
	default:
		return "Global Research Databases"
	}
}

// ParseSource parses a source identifier. The empty string and "none" map
// to SourceNone.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SourceNone, nil
	case "scholar", "google-scholar":
		return SourceScholar, nil
	case "arxiv":
		return SourceArxiv, nil
	case "wiki", "wikipedia":
		return SourceWiki, nil
	default:
		return SourceNone, fmt.Errorf("unknown research source %q (want scholar, arxiv or wiki)", s)
	}
}

// =============================================================================
// MODES
// =============================================================================

// Modes is a snapshot of the toggles.
//
// Invariants: a Source other than SourceNone implies Research, and
// Incognito implies !Research.
type Modes struct {
	Incognito bool
	Research  bool
	Source    Source
}

// Valid reports whether m satisfies the mode invariants.
func (m Modes) Valid() bool {
	if m.Source != SourceNone && !m.Research {
		return false
	}
	return !(m.Incognito && m.Research)
}

// String returns a compact label such as "research:arxiv".
func (m Modes) String() string {
	switch {
	case m.Incognito:
		return "incognito"
	case m.Research && m.Source != SourceNone:
		return "research:" + m.Source.String()
	case m.Research:
		return "research"
	default:
		return "normal"
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller applies mode transitions.
type Controller struct {
	mu    sync.Mutex
	modes Modes
}

// NewController creates a controller with every mode off.
func NewController() *Controller {
	return &Controller{}
}

// NewControllerWith starts from initial, normalised to satisfy the
// invariants. Incognito wins over research.
func NewControllerWith(initial Modes) *Controller {
	if initial.Source != SourceNone {
		initial.Research = true
	}
	if initial.Incognito {
		initial.Research = false
		initial.Source = SourceNone
	}
	return &Controller{modes: initial}
}

// Modes returns the current modes.
func (c *Controller) Modes() Modes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modes
}

// ToggleIncognito flips incognito. Turning it on leaves research.
func (c *Controller) ToggleIncognito() Modes {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modes.Incognito = !c.modes.Incognito
	if c.modes.Incognito {
		c.modes.Research = false
		c.modes.Source = SourceNone
	}
	return c.modes
}

// ToggleResearch flips research. Turning it on leaves incognito; turning it
// off clears the source.
func (c *Controller) ToggleResearch() Modes {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modes.Research = !c.modes.Research
	if c.modes.Research {
		c.modes.Incognito = false
	} else {
		c.modes.Source = SourceNone
	}
	return c.modes
}

// SetResearchSource selects src. Selecting the current source again clears
// it and leaves research on. Selecting a new source turns research on and
// incognito off.
func (c *Controller) SetResearchSource(src Source) Modes {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src == SourceNone || c.modes.Source == src {
		c.modes.Source = SourceNone
		return c.modes
	}
	c.modes.Source = src
	c.modes.Research = true
	c.modes.Incognito = false
	return c.modes
}
