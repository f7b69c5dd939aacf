// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
type StreamReader struct {
	reader  *bufio.Reader
	model   string
	skipped int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Next returns the next increment of the stream. Blank and malformed lines
// are skipped. It returns io.EOF once the body is exhausted, and a
// *ClientError when the backend reports an error line or the read fails.
func (s *StreamReader) Next() (*StreamChunk, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
		}
		atEOF := err != nil

		// The last line may arrive without a trailing newline.
		if chunk, perr := s.parseLine(line); perr != nil {
			return nil, perr
		} else if chunk != nil {
			return chunk, nil
		}

		if atEOF {
			return nil, io.EOF
		}
	}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the final chunk, the end of the body, or cancellation.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return canceledError(err)
		}

		chunk, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A cancelled request surfaces as a read error on the body.
			if ctx.Err() != nil {
				return canceledError(ctx.Err())
			}
			return err
		}

		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
}

// Skipped returns how many non-empty lines failed to parse so far.
func (s *StreamReader) Skipped() int {
	return s.skipped
}

// parseLine decodes one line. It returns (nil, nil) for lines to skip.
func (s *StreamReader) parseLine(line []byte) (*StreamChunk, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var response chatStreamLine
	if err := json.Unmarshal(line, &response); err != nil {
		s.skipped++
		return nil, nil
	}

	if response.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: response.Error}
	}

	if response.Model != "" {
		s.model = response.Model
	}

	chunk := &StreamChunk{
		Content:    response.Message.Content,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}
	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}
	return chunk, nil
}
