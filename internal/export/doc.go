// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes archived conversations to shareable files.
//
// # Key Types
//
//   - Exporter: converts a conversation to one format
//   - MarkdownExporter: front matter plus one section per message
//   - JSONExporter: a stable document with messages and suggestions
//
// # Usage
//
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.WriteFile(conv, exp, ".")
package export
