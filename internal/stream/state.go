// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"sync"
)

// Sentinel errors.
var (
	// ErrClosed is returned by Append once the State completed or failed.
	ErrClosed = errors.New("stream: state closed")

	// ErrStalled fails a stream that produced no text for Settings.MaxStall.
	ErrStalled = errors.New("stream: no output within stall limit")
)

// =============================================================================
// STATE
// =============================================================================

// State is the transient state of one in-flight response.
//
// Text is held as runes so reveal batches never split a UTF-8 sequence.
// The revealed prefix only grows and never passes the accumulated text.
// State is safe for concurrent use: the ingestor appends from the network
// goroutine while the scheduler reveals from the frame loop.
type State struct {
	mu          sync.Mutex
	accumulated []rune
	revealed    int
	complete    bool
	failed      bool
	err         error
}

// Snapshot is a consistent copy of a State at one instant.
type Snapshot struct {
	Accumulated string
	Revealed    string
	Remaining   int
	Complete    bool
	Failed      bool
	Err         error
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

// Append adds a fragment in arrival order. Empty fragments are accepted and
// ignored. It returns ErrClosed after Complete or Fail.
func (s *State) Append(fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete || s.failed {
		return ErrClosed
	}
	s.accumulated = append(s.accumulated, []rune(fragment)...)
	return nil
}

// Complete marks normal end of stream. Only the first call of Complete or
// Fail takes effect; it reports whether this call did.
func (s *State) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete || s.failed {
		return false
	}
	s.complete = true
	return true
}

// Fail marks the stream as aborted by err. Only the first call of Complete
// or Fail takes effect; it reports whether this call did.
func (s *State) Fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete || s.failed {
		return false
	}
	s.failed = true
	s.err = err
	return true
}

// Done reports whether no more text will arrive.
func (s *State) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete || s.failed
}

// Remaining returns the backlog in characters.
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accumulated) - s.revealed
}

// Snapshot returns a consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Accumulated: string(s.accumulated),
		Revealed:    string(s.accumulated[:s.revealed]),
		Remaining:   len(s.accumulated) - s.revealed,
		Complete:    s.complete,
		Failed:      s.failed,
		Err:         s.err,
	}
}

// reveal moves up to n characters of backlog into the revealed prefix and
// returns the new revealed text. n < 0 reveals everything.
func (s *State) reveal(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := len(s.accumulated) - s.revealed
	if n < 0 || n > backlog {
		n = backlog
	}
	s.revealed += n
	return string(s.accumulated[:s.revealed])
}
