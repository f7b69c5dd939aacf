// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/muse-tui/internal/config"
	"github.com/jeranaias/muse-tui/internal/extract"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/modes"
	"github.com/jeranaias/muse-tui/internal/ollama"
	"github.com/jeranaias/muse-tui/internal/store"
	"github.com/jeranaias/muse-tui/internal/stream"
)

// Sentinel errors.
var (
	ErrBusy         = errors.New("chat: a response is still streaming")
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrClosed       = errors.New("chat: session closed")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Session.
type Options struct {
	// Config is copied; later changes go through UpdateSettings.
	Config *config.Config

	// Source streams model answers. Usually an *ollama.Client.
	Source stream.Source

	// Store holds conversations. A fresh store is created when nil.
	Store *store.Store

	// Modes starts from these toggles.
	Modes modes.Modes

	// Notify receives change events. It is never called with the session
	// lock held, so it may call back into the session.
	Notify func(Event)

	// Persist saves settings after UpdateSettings. Nil keeps them in memory.
	Persist func(*config.Config) error

	// ExternalFrames leaves frame pacing to the caller's Tick calls.
	ExternalFrames bool

	// Clock overrides the scheduler time source (tests).
	Clock stream.Clock

	Logger *log.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one user's chat session.
type Session struct {
	store    *store.Store
	modes    *modes.Controller
	ingestor *stream.Ingestor
	notify   func(Event)
	persist  func(*config.Config) error
	external bool
	clock    stream.Clock
	logger   *log.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu             sync.Mutex
	cfg            *config.Config
	active         *activeStream
	thinking       bool
	researching    bool
	researchStatus string
	researchSource modes.Source
	code           extract.CodeBlock
	lastErr        error
	closed         bool
}

// activeStream is the bookkeeping of the one in-flight answer.
type activeStream struct {
	convID string
	msgID  string
	state  *stream.State
	sched  *stream.Scheduler
	cancel context.CancelFunc

	framing atomic.Bool // scheduler may be stepped
	done    chan struct{}
	once    sync.Once
	err     error
}

// New creates a session.
func New(opts Options) *Session {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = opts.Config.Clone()
	}
	st := opts.Store
	if st == nil {
		st = store.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(Event) {}
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		store:    st,
		modes:    modes.NewControllerWith(opts.Modes),
		ingestor: stream.NewIngestor(opts.Source, logger),
		notify:   notify,
		persist:  opts.Persist,
		external: opts.ExternalFrames,
		clock:    opts.Clock,
		logger:   logger.WithPrefix("chat"),
		ctx:      ctx,
		stop:     stop,
		cfg:      cfg,
	}
}

// Store returns the underlying conversation store.
func (s *Session) Store() *store.Store {
	return s.store
}

// Close cancels any in-flight request and stops frame pacing.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	a := s.active
	s.mu.Unlock()

	if a != nil {
		a.cancel()
	}
	s.stop()
}

// =============================================================================
// SENDING
// =============================================================================

// Send appends text as a user message and streams the answer. It returns
// once the request is under way; progress arrives through Notify. The
// stream is bound to ctx: cancelling it aborts the request.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.active != nil {
		s.mu.Unlock()
		return ErrBusy
	}

	m := s.modes.Modes()
	cfg := s.cfg

	user := model.NewUserMessage(text)
	ai := model.NewAssistantMessage()
	convID, err := s.store.StartStream(m.Incognito, user, ai)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	conv := s.store.Get(convID)
	if conv == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}

	req := &ollama.ChatRequest{
		Model:    cfg.Model.Name,
		Messages: conv.ToOllamaMessages(modes.SystemPrompt(m, cfg.Model.SystemPromptOverride)),
		Stream:   true,
		Options:  cfg.Model.Options(),
	}

	reqCtx, cancel := context.WithCancel(ctx)
	st := stream.NewState()
	a := &activeStream{
		convID: convID,
		msgID:  ai.ID,
		state:  st,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.sched = stream.NewScheduler(convID, ai.ID, st, &sink{s: s}, s.store, s.clock, stream.Settings{
		FrameInterval: cfg.Stream.FrameInterval(),
		MaxBatch:      cfg.Stream.MaxBatch,
		ThinkingDelay: cfg.Stream.ThinkingDelay(),
		MaxStall:      cfg.Stream.MaxStall(),
	})

	s.active = a
	s.code = extract.CodeBlock{}
	s.thinking = false
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Debug("stream started", "conv", convID, "msg", ai.ID, "model", req.Model, "modes", m.String())
	s.notify(Event{Kind: EventStarted, ConversationID: convID, MessageID: ai.ID})

	go s.run(reqCtx, a, req, m, cfg)
	return nil
}

// UseSuggestion clears the suggestions offered on msgID and sends text.
func (s *Session) UseSuggestion(ctx context.Context, msgID, text string) error {
	s.mu.Lock()
	busy := s.active != nil
	s.mu.Unlock()
	if busy {
		return ErrBusy
	}

	s.store.ClearSuggestions(msgID)
	return s.Send(ctx, text)
}

// Cancel aborts the in-flight request, if any. The answer keeps whatever
// already arrived.
func (s *Session) Cancel() {
	s.mu.Lock()
	a := s.active
	s.mu.Unlock()

	if a != nil {
		a.cancel()
	}
}

// Wait blocks until the current stream, if any, finishes and returns its
// transport error.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	a := s.active
	s.mu.Unlock()
	if a == nil {
		return nil
	}

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick steps the active scheduler once when Options.ExternalFrames is set.
// It reports whether a stream is still in flight.
func (s *Session) Tick() bool {
	s.mu.Lock()
	a := s.active
	s.mu.Unlock()

	if a == nil {
		return false
	}
	if !s.external || !a.framing.Load() {
		return true
	}
	if frame := a.sched.Step(); frame.Done() {
		s.finish(a, frame)
		return false
	}
	return true
}

// Streaming reports whether an answer is in flight.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// run performs research staging, then starts frames and ingestion.
func (s *Session) run(ctx context.Context, a *activeStream, req *ollama.ChatRequest, m modes.Modes, cfg *config.Config) {
	var stageErr error
	if m.Research {
		stageErr = s.research(ctx, m, cfg)
	}

	a.framing.Store(true)
	if !s.external {
		go s.frames(a)
	}

	if stageErr != nil {
		a.state.Fail(stageErr)
		return
	}
	if err := s.ingestor.Run(ctx, req, a.state); err != nil {
		s.logger.Debug("ingest ended with error", "conv", a.convID, "err", err)
	}
}

// frames paces the scheduler until it stops.
func (s *Session) frames(a *activeStream) {
	frame, err := a.sched.Run(s.ctx)
	if err != nil {
		// Session closed mid-stream: nothing more will be written.
		frame = stream.Frame{Abandoned: true, Err: err}
	}
	s.finish(a, frame)
}

func (s *Session) research(ctx context.Context, m modes.Modes, cfg *config.Config) error {
	s.setResearch(true, "", modes.SourceNone)
	defer s.setResearch(false, "", modes.SourceNone)

	plan := modes.ResearchPlan(m.Source, cfg.Stream.ResearchStage())
	return modes.RunPlan(ctx, plan, func(stage modes.Stage) {
		s.setResearch(true, stage.Status, stage.Source)
	})
}

func (s *Session) setResearch(on bool, status string, src modes.Source) {
	s.mu.Lock()
	s.researching = on
	s.researchStatus = status
	s.researchSource = src
	s.mu.Unlock()
	s.notify(Event{Kind: EventResearch, Status: status})
}

// finish releases the stream exactly once.
func (s *Session) finish(a *activeStream, frame stream.Frame) {
	a.once.Do(func() {
		a.cancel()
		a.err = frame.Err
		s.store.EndStream(a.convID, a.msgID)

		s.mu.Lock()
		if s.active == a {
			s.active = nil
		}
		s.thinking = false
		reportable := frame.Err != nil && !isCancellation(frame.Err)
		if reportable {
			s.lastErr = frame.Err
		}
		s.mu.Unlock()

		defer close(a.done)

		switch {
		case reportable:
			s.logger.Warn("stream failed", "conv", a.convID, "err", frame.Err)
			s.notify(Event{Kind: EventError, ConversationID: a.convID, MessageID: a.msgID, Err: frame.Err})
		case frame.Abandoned:
			s.logger.Debug("stream abandoned", "conv", a.convID)
			s.notify(Event{Kind: EventFinished, ConversationID: a.convID, MessageID: a.msgID})
		default:
			s.logger.Debug("stream finished", "conv", a.convID, "suggestions", len(frame.Suggestions))
			s.notify(Event{Kind: EventFinished, ConversationID: a.convID, MessageID: a.msgID})
		}
	})
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || ollama.IsCanceled(err)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation starts an empty conversation, or an empty incognito slot
// in incognito mode.
func (s *Session) NewConversation() string {
	id := s.store.Create(s.modes.Modes().Incognito)
	s.clearCode()
	s.notify(Event{Kind: EventConversations, ConversationID: id})
	return id
}

// Select switches to conversation id. Unknown IDs are ignored.
func (s *Session) Select(id string) {
	s.store.Select(id)
	s.notify(Event{Kind: EventConversations, ConversationID: id})
}

// Delete removes conversation id and stops a stream writing into it.
// Deleting the active conversation also clears the code preview.
func (s *Session) Delete(id string) {
	wasActive := s.store.Delete(id)
	s.cancelStreamIn(id)
	if wasActive {
		s.clearCode()
	}
	s.notify(Event{Kind: EventConversations, ConversationID: id})
}

// Conversations returns all normal conversations, most recent first.
func (s *Session) Conversations() []*model.Conversation {
	return s.store.List()
}

// CurrentConversation returns the conversation on screen: the incognito slot
// in incognito mode, otherwise the active conversation. Nil when none.
func (s *Session) CurrentConversation() *model.Conversation {
	if s.modes.Modes().Incognito {
		return s.store.Ephemeral()
	}
	return s.store.Active()
}

func (s *Session) cancelStreamIn(convID string) {
	s.mu.Lock()
	a := s.active
	s.mu.Unlock()
	if a != nil && a.convID == convID {
		a.cancel()
	}
}

func (s *Session) clearCode() {
	s.mu.Lock()
	s.code = extract.CodeBlock{}
	s.mu.Unlock()
}

// =============================================================================
// MODES
// =============================================================================

// Modes returns the current mode toggles.
func (s *Session) Modes() modes.Modes {
	return s.modes.Modes()
}

// ToggleIncognito flips incognito. Entering it starts a fresh incognito slot
// with no normal conversation selected; leaving it discards the slot.
func (s *Session) ToggleIncognito() modes.Modes {
	m := s.modes.ToggleIncognito()
	if m.Incognito {
		s.store.ResetEphemeral()
		s.store.ClearActive()
	} else {
		s.leaveIncognito()
	}
	s.notify(Event{Kind: EventModes})
	return m
}

// ToggleResearch flips research mode. Turning it on leaves incognito.
func (s *Session) ToggleResearch() modes.Modes {
	was := s.modes.Modes().Incognito
	m := s.modes.ToggleResearch()
	if was && !m.Incognito {
		s.leaveIncognito()
	}
	s.notify(Event{Kind: EventModes})
	return m
}

// SetResearchSource selects or clears the research source. Selecting a
// source leaves incognito.
func (s *Session) SetResearchSource(src modes.Source) modes.Modes {
	was := s.modes.Modes().Incognito
	m := s.modes.SetResearchSource(src)
	if was && !m.Incognito {
		s.leaveIncognito()
	}
	s.notify(Event{Kind: EventModes})
	return m
}

// leaveIncognito discards the incognito conversation and its stream.
func (s *Session) leaveIncognito() {
	s.store.DiscardEphemeral()
	s.cancelStreamIn(store.EphemeralID)
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings returns a copy of the current settings.
func (s *Session) Settings() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// UpdateSettings applies fn to a copy of the settings, validates and
// persists it, then uses it for the next request. The stream in flight
// keeps the settings it started with.
func (s *Session) UpdateSettings(fn func(*config.Config)) error {
	next := s.Settings()
	fn(next)
	if err := next.Validate(); err != nil {
		return err
	}
	if s.persist != nil {
		if err := s.persist(next); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()
	s.notify(Event{Kind: EventSettings})
	return nil
}

// ReplaceSettings swaps in cfg without persisting it, as after a reload of
// the config file.
func (s *Session) ReplaceSettings(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.mu.Unlock()
	s.notify(Event{Kind: EventSettings})
}

// =============================================================================
// VIEW STATE
// =============================================================================

// View returns a snapshot of everything a front end renders.
func (s *Session) View() ViewState {
	m := s.modes.Modes()
	v := ViewState{
		Conversations: s.store.List(),
		ActiveID:      s.store.ActiveID(),
		Modes:         m,
	}
	if m.Incognito {
		v.Current = s.store.Ephemeral()
	} else {
		v.Current = s.store.Active()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v.Typing = s.active != nil
	v.Thinking = s.thinking
	v.Researching = s.researching
	v.ResearchStatus = s.researchStatus
	v.ResearchSource = s.researchSource
	v.Code = s.code
	v.LastError = s.lastErr
	v.UserName = s.cfg.User.Name
	v.Model = s.cfg.Model.Name
	return v
}

// =============================================================================
// SINK
// =============================================================================

// sink routes scheduler output for one stream into the store and the
// session's view state.
type sink struct {
	s *Session
}

func (k *sink) UpdateContent(convID, msgID, content string) {
	if k.s.store.UpdateMessageContent(convID, msgID, content, nil) {
		k.s.notify(Event{Kind: EventContent, ConversationID: convID, MessageID: msgID, Content: content})
	}
}

func (k *sink) PreviewCode(convID, msgID string, block extract.CodeBlock) {
	k.s.mu.Lock()
	k.s.code = block
	k.s.mu.Unlock()
	k.s.notify(Event{Kind: EventCode, ConversationID: convID, MessageID: msgID})
}

func (k *sink) SetThinking(convID, msgID string, thinking bool) {
	k.s.mu.Lock()
	k.s.thinking = thinking
	k.s.mu.Unlock()
	k.s.notify(Event{Kind: EventThinking, ConversationID: convID, MessageID: msgID, Thinking: thinking})
}

func (k *sink) Finalize(convID, msgID, content string, suggestions []string) {
	k.s.store.Finalize(convID, msgID, content, suggestions)
	k.s.notify(Event{Kind: EventContent, ConversationID: convID, MessageID: msgID, Content: content, Final: true})
}
