// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across muse.
//
// # Key Functions
//
// String Utilities:
//   - Normalize: NFC normalisation for user supplied text
//   - SingleLine: collapse newlines and runs of whitespace
//   - TruncateWidth: display-width aware truncation with ellipsis
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateWidth(util.SingleLine(text), 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
