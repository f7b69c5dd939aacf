// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// Only the parts muse needs are implemented: a reachability check, the
// installed model list, and streaming chat completions.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatRequest / Options: request body for /api/chat
//   - StreamReader: newline-delimited JSON reader for streamed bodies
//   - ClientError: typed transport and protocol failures
//
// # Usage
//
//	client := ollama.NewClient()
//	err := client.ChatStream(ctx, &ollama.ChatRequest{
//	    Model:    "qwen2.5-coder:3b",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	}, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
//
// # Stream Format
//
// Each line of a streamed body is an independent JSON object. Lines that do
// not parse are skipped: backends emit keep-alives and occasionally split
// objects at chunk boundaries. A line carrying an "error" field is a backend
// failure and ends the stream with a ClientError.
package ollama
