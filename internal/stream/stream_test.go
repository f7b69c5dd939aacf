// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/extract"
	"github.com/jeranaias/muse-tui/internal/ollama"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingSink struct {
	mu          sync.Mutex
	updates     []string
	previews    []extract.CodeBlock
	thinking    []bool
	finalized   int
	final       string
	suggestions []string
}

func (r *recordingSink) UpdateContent(_, _, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, content)
}

func (r *recordingSink) PreviewCode(_, _ string, block extract.CodeBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews = append(r.previews, block)
}

func (r *recordingSink) SetThinking(_, _ string, thinking bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thinking = append(r.thinking, thinking)
}

func (r *recordingSink) Finalize(_, _, content string, suggestions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized++
	r.final = content
	r.suggestions = suggestions
}

type switchTarget struct {
	mu     sync.Mutex
	active bool
}

func (t *switchTarget) IsActiveStream(_, _ string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *switchTarget) set(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = v
}

type fixture struct {
	state  *State
	sink   *recordingSink
	target *switchTarget
	clock  *fakeClock
	sched  *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:  NewState(),
		sink:   &recordingSink{},
		target: &switchTarget{active: true},
		clock:  newFakeClock(),
	}
	f.sched = NewScheduler("c1", "m1", f.state, f.sink, f.target, f.clock, DefaultSettings())
	return f
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestState_AppendAfterCompletion(t *testing.T) {
	st := NewState()
	require.NoError(t, st.Append("abc"))
	assert.True(t, st.Complete())
	assert.False(t, st.Complete())
	assert.False(t, st.Fail(errors.New("late")))

	assert.ErrorIs(t, st.Append("more"), ErrClosed)
	snap := st.Snapshot()
	assert.Equal(t, "abc", snap.Accumulated)
	assert.True(t, snap.Complete)
	assert.NoError(t, snap.Err)
}

func TestState_RevealCountsRunes(t *testing.T) {
	st := NewState()
	require.NoError(t, st.Append("héllo 世界"))
	assert.Equal(t, 8, st.Remaining())

	assert.Equal(t, "hé", st.reveal(2))
	assert.Equal(t, "héllo 世", st.reveal(5))
	assert.Equal(t, "héllo 世界", st.reveal(-1))
	assert.Zero(t, st.Remaining())
}

// =============================================================================
// BATCH TESTS
// =============================================================================

func TestBatchSize(t *testing.T) {
	tests := []struct {
		remaining int
		want      int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{11, 6},
		{128, 64},
		{129, 64},
		{10000, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BatchSize(tt.remaining, 64), "remaining=%d", tt.remaining)
	}
}

// =============================================================================
// SCHEDULER TESTS
// =============================================================================

func TestScheduler_HelloWorldConverges(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("Hello world"))
	f.state.Complete()

	frame := f.sched.Step()
	assert.Equal(t, "Hello ", frame.Published)
	assert.Equal(t, 6, frame.Revealed)
	assert.Equal(t, 5, frame.Remaining)

	frame = f.sched.Step()
	assert.Equal(t, "Hello wo", frame.Published)

	frame = f.sched.Step()
	assert.Equal(t, "Hello worl", frame.Published)

	frame = f.sched.Step()
	assert.True(t, frame.Finalized)
	assert.Equal(t, "Hello world", frame.Published)

	assert.Equal(t, []string{"Hello ", "Hello wo", "Hello worl", "Hello world"}, f.sink.updates)
	assert.Equal(t, 1, f.sink.finalized)
	assert.Equal(t, "Hello world", f.sink.final)
}

func TestScheduler_FinalizesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("done"))
	f.state.Complete()

	for i := 0; i < 10; i++ {
		f.sched.Step()
	}
	assert.Equal(t, 1, f.sink.finalized)
	assert.True(t, f.sched.Last().Finalized)
}

func TestScheduler_BatchNeverExceedsCap(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append(strings.Repeat("x", 1000)))
	f.state.Complete()

	prev := 0
	for i := 0; i < 100; i++ {
		frame := f.sched.Step()
		if frame.Finalized {
			break
		}
		assert.LessOrEqual(t, frame.Revealed, 64)
		assert.GreaterOrEqual(t, frame.Revealed, 1)
		assert.Equal(t, prev+frame.Revealed, len(frame.Published))
		prev = len(frame.Published)
	}
	assert.Equal(t, 1, f.sink.finalized)
	assert.Len(t, f.sink.final, 1000)
}

func TestScheduler_OversizedBatchSettingIsClamped(t *testing.T) {
	st := NewState()
	sink := &recordingSink{}
	cfg := DefaultSettings()
	cfg.MaxBatch = 500
	sched := NewScheduler("c1", "m1", st, sink, &switchTarget{active: true}, newFakeClock(), cfg)

	require.NoError(t, st.Append(strings.Repeat("x", 1000)))
	frame := sched.Step()
	assert.Equal(t, MaxBatchLimit, frame.Revealed)
}

func TestScheduler_Deterministic(t *testing.T) {
	run := func() []string {
		f := newFixture(t)
		require.NoError(t, f.state.Append("The quick brown fox jumps over the lazy dog"))
		f.sched.Step()
		require.NoError(t, f.state.Append(" again and again"))
		f.state.Complete()
		for !f.sched.Step().Done() {
		}
		return f.sink.updates
	}
	assert.Equal(t, run(), run())
}

func TestScheduler_SuggestionsNeverShown(t *testing.T) {
	f := newFixture(t)
	text := "Paris is the capital.[SUGGESTIONS] Q1: Why? | Q2: When? | " +
		strings.Repeat("too-long-", 12)
	// Deliver one character at a time so every prefix is published.
	for _, r := range text {
		require.NoError(t, f.state.Append(string(r)))
		f.sched.Step()
	}
	f.state.Complete()
	for !f.sched.Step().Done() {
	}

	for _, u := range f.sink.updates {
		assert.NotContains(t, u, "[")
		assert.NotContains(t, u, "Q1")
	}
	assert.Equal(t, "Paris is the capital.", f.sink.final)
	assert.Equal(t, []string{"Why?", "When?"}, f.sink.suggestions)
}

func TestScheduler_CodePreview(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("Here:\n```go\nfmt.Println(1)\n```\ndone"))
	f.state.Complete()
	for !f.sched.Step().Done() {
	}

	require.NotEmpty(t, f.sink.previews)
	last := f.sink.previews[len(f.sink.previews)-1]
	assert.Equal(t, "fmt.Println(1)", last.Code)
	assert.Equal(t, "go", last.Language)
}

func TestScheduler_NoPreviewWithoutCode(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("plain text only"))
	f.state.Complete()
	for !f.sched.Step().Done() {
	}
	assert.Empty(t, f.sink.previews)
}

func TestScheduler_ThinkingAfterStall(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("ab"))

	f.sched.Step() // reveals "a"
	f.sched.Step() // reveals "b"

	frame := f.sched.Step() // stall starts
	assert.False(t, frame.Thinking)

	f.clock.Advance(399 * time.Millisecond)
	assert.False(t, f.sched.Step().Thinking)

	f.clock.Advance(time.Millisecond)
	assert.True(t, f.sched.Step().Thinking)
	assert.Equal(t, []bool{true}, f.sink.thinking)

	// Backlog resumes: thinking clears immediately.
	require.NoError(t, f.state.Append("c"))
	assert.False(t, f.sched.Step().Thinking)
	assert.Equal(t, []bool{true, false}, f.sink.thinking)

	// A renewed stall triggers again.
	f.sched.Step()
	f.clock.Advance(400 * time.Millisecond)
	assert.True(t, f.sched.Step().Thinking)
	assert.Equal(t, []bool{true, false, true}, f.sink.thinking)

	f.state.Complete()
	frame = f.sched.Step()
	assert.True(t, frame.Finalized)
	assert.False(t, frame.Thinking)
	assert.Equal(t, []bool{true, false, true, false}, f.sink.thinking)
	assert.Equal(t, "abc", f.sink.final)
}

func TestScheduler_FailureFlushesReceived(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("partial answ"))
	f.sched.Step()

	boom := errors.New("connection reset")
	f.state.Fail(boom)

	frame := f.sched.Step()
	assert.True(t, frame.Finalized)
	assert.ErrorIs(t, frame.Err, boom)
	assert.Equal(t, "partial answ", f.sink.final)
	assert.Equal(t, 1, f.sink.finalized)
}

func TestScheduler_FailureWithNothingReceived(t *testing.T) {
	f := newFixture(t)
	f.state.Fail(errors.New("refused"))

	frame := f.sched.Step()
	assert.True(t, frame.Finalized)
	assert.Equal(t, "", f.sink.final)
	assert.Empty(t, f.sink.suggestions)
}

func TestScheduler_MaxStall(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultSettings()
	cfg.MaxStall = time.Second
	f.sched = NewScheduler("c1", "m1", f.state, f.sink, f.target, f.clock, cfg)

	require.NoError(t, f.state.Append("hi"))
	for f.state.Remaining() > 0 {
		f.sched.Step()
	}
	f.sched.Step()
	f.clock.Advance(time.Second)

	frame := f.sched.Step()
	assert.True(t, frame.Finalized)
	assert.ErrorIs(t, frame.Err, ErrStalled)
	assert.Equal(t, "hi", f.sink.final)
	assert.ErrorIs(t, f.state.Append("late"), ErrClosed)
}

func TestScheduler_AbandonedStopsWriting(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Append("some text that keeps going"))
	f.sched.Step()
	updates := len(f.sink.updates)

	f.target.set(false)
	f.state.Complete()

	frame := f.sched.Step()
	assert.True(t, frame.Abandoned)
	assert.True(t, frame.Done())
	f.sched.Step()

	assert.Len(t, f.sink.updates, updates)
	assert.Zero(t, f.sink.finalized)
}

func TestScheduler_Run(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultSettings()
	cfg.FrameInterval = time.Millisecond
	f.sched = NewScheduler("c1", "m1", f.state, f.sink, f.target, nil, cfg)

	require.NoError(t, f.state.Append(strings.Repeat("word ", 50)))
	f.state.Complete()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frame, err := f.sched.Run(ctx)
	require.NoError(t, err)
	assert.True(t, frame.Finalized)
	// The final content is trimmed.
	assert.Equal(t, strings.TrimSpace(strings.Repeat("word ", 50)), f.sink.final)
}

func TestScheduler_RunCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.sink.finalized)
}

// =============================================================================
// INGESTOR TESTS
// =============================================================================

type scriptedSource struct {
	chunks []ollama.StreamChunk
	err    error
}

func (s *scriptedSource) ChatStream(_ context.Context, _ *ollama.ChatRequest, cb ollama.StreamCallback) error {
	for _, c := range s.chunks {
		cb(c)
	}
	return s.err
}

func TestIngestor_RunCompletes(t *testing.T) {
	src := &scriptedSource{chunks: []ollama.StreamChunk{
		{Content: "Hel"}, {Content: ""}, {Content: "lo"}, {Done: true},
	}}
	st := NewState()
	require.NoError(t, NewIngestor(src, nil).Run(context.Background(), &ollama.ChatRequest{}, st))

	snap := st.Snapshot()
	assert.Equal(t, "Hello", snap.Accumulated)
	assert.True(t, snap.Complete)
	assert.False(t, snap.Failed)
}

func TestIngestor_RunFails(t *testing.T) {
	boom := errors.New("dropped")
	src := &scriptedSource{chunks: []ollama.StreamChunk{{Content: "partial answ"}}, err: boom}
	st := NewState()

	err := NewIngestor(src, nil).Run(context.Background(), &ollama.ChatRequest{}, st)
	assert.ErrorIs(t, err, boom)

	snap := st.Snapshot()
	assert.Equal(t, "partial answ", snap.Accumulated)
	assert.True(t, snap.Failed)
	assert.False(t, snap.Complete)
}

func TestIngestor_Consume(t *testing.T) {
	body := strings.Join([]string{
		`{"message":{"content":"a"},"done":false}`,
		`{broken`,
		`{"message":{"content":"b"},"done":false}`,
		`{"message":{"content":""},"done":true}`,
	}, "\n")

	st := NewState()
	require.NoError(t, NewIngestor(nil, nil).Consume(context.Background(), strings.NewReader(body), st))
	assert.Equal(t, "ab", st.Snapshot().Accumulated)
	assert.True(t, st.Done())
}

func TestPipeline_IngestAndSchedule(t *testing.T) {
	f := newFixture(t)
	src := &scriptedSource{chunks: []ollama.StreamChunk{
		{Content: "Answer.[SUGG"}, {Content: "ESTIONS] Q1: More? | Q2. Less?"}, {Done: true},
	}}
	require.NoError(t, NewIngestor(src, nil).Run(context.Background(), &ollama.ChatRequest{}, f.state))

	for !f.sched.Step().Done() {
	}
	assert.Equal(t, "Answer.", f.sink.final)
	assert.Equal(t, []string{"More?", "Less?"}, f.sink.suggestions)
}
