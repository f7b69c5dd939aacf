// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local conversation archive for muse.
//
// Finished conversations are kept in a single SQLite database so history
// survives restarts. The incognito conversation is never written.
//
// # Key Types
//
//   - DB: SQLite-backed archive; implements store.Archiver
//   - ConversationMeta: Lightweight metadata for listing
//
// # Usage
//
// Open the archive and seed the store:
//
//	db, err := storage.Open(path)
//	convs, err := db.LoadConversations(ctx, 0)
//	st := store.New(store.WithArchiver(db))
//	st.Load(convs)
//
// List and search:
//
//	metas, err := db.List(ctx)
//	results, err := db.Search(ctx, "query text")
//
// # Storage Location
//
// The archive lives at ~/.muse/history.db unless history.path is set.
package storage
