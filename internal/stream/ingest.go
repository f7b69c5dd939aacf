// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/muse-tui/internal/ollama"
)

// =============================================================================
// INGESTOR
// =============================================================================

// Source produces a streamed chat response. *ollama.Client implements it.
type Source interface {
	ChatStream(ctx context.Context, req *ollama.ChatRequest, callback ollama.StreamCallback) error
}

// Ingestor feeds a State from a Source.
type Ingestor struct {
	source Source
	logger *log.Logger
}

// NewIngestor creates an Ingestor. A nil logger discards output.
func NewIngestor(source Source, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Ingestor{source: source, logger: logger.WithPrefix("ingest")}
}

// Run issues req and appends every received fragment to st. Normal end of
// stream completes st; any transport failure, including cancellation of
// ctx, fails it. The returned error is the failure, if any.
func (in *Ingestor) Run(ctx context.Context, req *ollama.ChatRequest, st *State) error {
	chunks := 0
	err := in.source.ChatStream(ctx, req, func(chunk ollama.StreamChunk) {
		chunks++
		if chunk.Content != "" {
			_ = st.Append(chunk.Content)
		}
		if chunk.Done && chunk.CompletionTokens > 0 {
			in.logger.Debug("stream finished",
				"model", chunk.Model,
				"tokens", chunk.CompletionTokens,
				"tok_per_sec", chunk.TokensPerSecond())
		}
	})
	return in.finish(st, chunks, err)
}

// Consume reads a newline-delimited JSON body directly into st.
func (in *Ingestor) Consume(ctx context.Context, body io.Reader, st *State) error {
	reader := ollama.NewStreamReader(body)
	chunks := 0
	err := reader.Process(ctx, func(chunk ollama.StreamChunk) {
		chunks++
		if chunk.Content != "" {
			_ = st.Append(chunk.Content)
		}
	})
	if n := reader.Skipped(); n > 0 {
		in.logger.Debug("skipped malformed lines", "count", n)
	}
	return in.finish(st, chunks, err)
}

func (in *Ingestor) finish(st *State, chunks int, err error) error {
	if err != nil {
		if ollama.IsCanceled(err) || errors.Is(err, context.Canceled) {
			in.logger.Debug("stream canceled", "chunks", chunks)
		} else {
			in.logger.Warn("stream failed", "chunks", chunks, "err", err)
		}
		st.Fail(err)
		return err
	}
	st.Complete()
	return nil
}
