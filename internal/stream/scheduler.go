// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/muse-tui/internal/extract"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Sink receives everything the Scheduler publishes for one stream.
type Sink interface {
	// UpdateContent replaces the visible content of the streaming message.
	UpdateContent(convID, msgID, content string)

	// PreviewCode publishes the last code block of the visible content.
	PreviewCode(convID, msgID string, block extract.CodeBlock)

	// SetThinking publishes the stalled indicator.
	SetThinking(convID, msgID string, thinking bool)

	// Finalize writes the final visible content and suggestions and clears
	// the streaming flag.
	Finalize(convID, msgID, content string, suggestions []string)
}

// Target reports whether (convID, msgID) is still the active stream.
type Target interface {
	IsActiveStream(convID, msgID string) bool
}

// Clock is the time source for stall detection.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// =============================================================================
// SETTINGS
// =============================================================================

// Settings tunes the Scheduler.
type Settings struct {
	// FrameInterval is the pacing used by Run (default: 16ms).
	FrameInterval time.Duration

	// MaxBatch caps the characters revealed per step (default: 64).
	MaxBatch int

	// ThinkingDelay is how long reveal must be caught up with an unfinished
	// stream before the thinking indicator turns on (default: 400ms).
	ThinkingDelay time.Duration

	// MaxStall fails the stream after this long without new text.
	// Zero disables the limit.
	MaxStall time.Duration
}

// MaxBatchLimit is the largest batch a paced step may reveal.
const MaxBatchLimit = 64

// DefaultSettings returns the default scheduler settings.
func DefaultSettings() Settings {
	return Settings{
		FrameInterval: 16 * time.Millisecond,
		MaxBatch:      MaxBatchLimit,
		ThinkingDelay: 400 * time.Millisecond,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.FrameInterval <= 0 {
		s.FrameInterval = d.FrameInterval
	}
	if s.MaxBatch <= 0 {
		s.MaxBatch = d.MaxBatch
	}
	if s.MaxBatch > MaxBatchLimit {
		s.MaxBatch = MaxBatchLimit
	}
	if s.ThinkingDelay < 0 {
		s.ThinkingDelay = 0
	}
	if s.MaxStall < 0 {
		s.MaxStall = 0
	}
	return s
}

// BatchSize returns how many characters one step reveals for a backlog of
// remaining: half of it rounded up, at least 1 and at most maxBatch.
func BatchSize(remaining, maxBatch int) int {
	if remaining <= 0 {
		return 0
	}
	n := (remaining + 1) / 2
	if n > maxBatch {
		n = maxBatch
	}
	if n < 1 {
		n = 1
	}
	return n
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Frame describes the outcome of one Step.
type Frame struct {
	// Published is the visible content after this step.
	Published string

	// Revealed is how many characters this step revealed.
	Revealed int

	// Remaining is the backlog left after this step.
	Remaining int

	Thinking bool

	// Finalized is set on the single step that finalised the message.
	Finalized   bool
	Suggestions []string

	// Abandoned is set once the stream stopped being the active one.
	Abandoned bool

	// Err is the transport failure the message was finalised after.
	Err error
}

// Done reports whether the scheduler has stopped.
func (f Frame) Done() bool {
	return f.Finalized || f.Abandoned
}

// Scheduler reveals the text of one State into one message.
type Scheduler struct {
	convID string
	msgID  string
	state  *State
	sink   Sink
	target Target
	clock  Clock
	cfg    Settings

	mu         sync.Mutex
	published  string
	thinking   bool
	stallSince time.Time
	done       bool
	last       Frame
}

// NewScheduler binds a scheduler to one stream. A nil clock uses time.Now.
func NewScheduler(convID, msgID string, st *State, sink Sink, target Target, clock Clock, cfg Settings) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		convID: convID,
		msgID:  msgID,
		state:  st,
		sink:   sink,
		target: target,
		clock:  clock,
		cfg:    cfg.withDefaults(),
	}
}

// ConversationID returns the conversation the scheduler writes to.
func (s *Scheduler) ConversationID() string { return s.convID }

// MessageID returns the message the scheduler writes to.
func (s *Scheduler) MessageID() string { return s.msgID }

// Step runs one tick. Once the returned frame is Done, further calls are
// no-ops returning the same frame.
func (s *Scheduler) Step() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return s.last
	}
	if !s.active() {
		return s.stop(Frame{Published: s.published, Abandoned: true})
	}

	snap := s.state.Snapshot()

	if snap.Failed {
		return s.flush(snap.Err)
	}

	frame := Frame{}
	now := s.clock.Now()

	if snap.Remaining > 0 {
		n := BatchSize(snap.Remaining, s.cfg.MaxBatch)
		revealed := s.state.reveal(n)
		frame.Revealed = n
		frame.Remaining = snap.Remaining - n

		s.stallSince = time.Time{}
		if s.thinking {
			s.thinking = false
			s.sink.SetThinking(s.convID, s.msgID, false)
		}
		s.publish(revealed)
	} else if !snap.Complete {
		if s.stallSince.IsZero() {
			s.stallSince = now
		}
		stalled := now.Sub(s.stallSince)

		if s.cfg.MaxStall > 0 && stalled >= s.cfg.MaxStall {
			if s.state.Fail(ErrStalled) {
				return s.flush(ErrStalled)
			}
			// Lost the race with the ingestor; pick up its outcome next step.
		}
		if !s.thinking && stalled >= s.cfg.ThinkingDelay {
			s.thinking = true
			s.sink.SetThinking(s.convID, s.msgID, true)
		}
	}

	if snap.Complete && frame.Remaining == 0 {
		return s.finalize(s.state.reveal(0), nil)
	}

	frame.Published = s.published
	frame.Thinking = s.thinking
	s.last = frame
	return frame
}

// Run steps the scheduler every FrameInterval until it finalises, the
// stream is abandoned, or ctx is done. It returns the last frame; the error
// is ctx's when it stopped early.
func (s *Scheduler) Run(ctx context.Context) (Frame, error) {
	limiter := rate.NewLimiter(rate.Every(s.cfg.FrameInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return s.Last(), ctx.Err()
		}
		if frame := s.Step(); frame.Done() {
			return frame, nil
		}
	}
}

// Last returns the most recent frame.
func (s *Scheduler) Last() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Scheduler) active() bool {
	return s.target == nil || s.target.IsActiveStream(s.convID, s.msgID)
}

// publish writes the visible part of revealed and its code preview.
// A trailing partial delimiter is withheld so it never flashes on screen.
func (s *Scheduler) publish(revealed string) {
	visible := extract.StreamingVisible(revealed)
	if visible == s.published {
		return
	}
	s.published = visible
	s.sink.UpdateContent(s.convID, s.msgID, visible)

	if block, ok := extract.ExtractLastCodeBlock(visible); ok && block.Code != "" {
		s.sink.PreviewCode(s.convID, s.msgID, block)
	}
}

// flush finalises with everything received before a failure. This is the
// terminal frame, so the batch cap, which paces live ticks, does not apply.
func (s *Scheduler) flush(err error) Frame {
	return s.finalize(s.state.reveal(-1), err)
}

func (s *Scheduler) finalize(revealed string, err error) Frame {
	if !s.active() {
		return s.stop(Frame{Published: s.published, Abandoned: true})
	}

	split := extract.SplitSuggestions(revealed)
	if s.thinking {
		s.thinking = false
		s.sink.SetThinking(s.convID, s.msgID, false)
	}
	if block, ok := extract.ExtractLastCodeBlock(split.Visible); ok && block.Code != "" && split.Visible != s.published {
		s.sink.PreviewCode(s.convID, s.msgID, block)
	}
	s.published = split.Visible
	s.sink.Finalize(s.convID, s.msgID, split.Visible, split.Suggestions)

	return s.stop(Frame{
		Published:   split.Visible,
		Finalized:   true,
		Suggestions: split.Suggestions,
		Err:         err,
	})
}

func (s *Scheduler) stop(frame Frame) Frame {
	s.done = true
	s.last = frame
	return frame
}
