// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEphemeral            = errors.New("incognito conversations are not archived")
)

// =============================================================================
// TYPES
// =============================================================================

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Preview      string // First user message, truncated
}

// previewWidth caps ConversationMeta.Preview, in terminal columns.
const previewWidth = 80

// DB is the SQLite conversation archive. It is safe for concurrent use.
type DB struct {
	db   *sql.DB
	path string

	// MaxConversations limits stored conversations (0 = unlimited).
	// The least recently updated are pruned after each save.
	MaxConversations int
}

// =============================================================================
// OPEN / CLOSE
// =============================================================================

// Open opens (creating if needed) the archive at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", schemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set schema version: %w", err)
	}

	return &DB{db: db, path: path, MaxConversations: 500}, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Close releases the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// =============================================================================
// SAVE / DELETE
// =============================================================================

// SaveConversation writes conv, replacing any earlier copy. Messages still
// streaming are left out.
func (d *DB) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	if conv.IsEphemeral {
		return ErrEphemeral
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		conv.ID, conv.Title, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, suggestions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		suggestions, err := json.Marshal(nonNil(msg.Suggestions))
		if err != nil {
			return fmt.Errorf("failed to encode suggestions: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, msg.ID, conv.ID, i, string(msg.Role), msg.Content,
			string(suggestions), msg.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if d.MaxConversations > 0 {
		if _, err := d.Prune(ctx, d.MaxConversations); err != nil {
			return err
		}
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (d *DB) DeleteConversation(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Prune keeps the max most recently updated conversations and returns how
// many were removed.
func (d *DB) Prune(ctx context.Context, max int) (int, error) {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id NOT IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
		)`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// LoadConversations returns archived conversations, most recent first.
// limit <= 0 returns all of them.
func (d *DB) LoadConversations(ctx context.Context, limit int) ([]*model.Conversation, error) {
	query := "SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	var convs []*model.Conversation
	index := make(map[string]*model.Conversation)
	for rows.Next() {
		var (
			conv             model.Conversation
			created, updated int64
		)
		if err := rows.Scan(&conv.ID, &conv.Title, &created, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.CreatedAt = time.UnixMilli(created)
		conv.UpdatedAt = time.UnixMilli(updated)
		conv.Messages = make([]*model.Message, 0)
		convs = append(convs, &conv)
		index[conv.ID] = &conv
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := d.loadMessages(ctx, index); err != nil {
		return nil, err
	}
	return convs, nil
}

// Get loads one conversation.
func (d *DB) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var (
		conv             model.Conversation
		created, updated int64
	)
	err := d.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?", id).
		Scan(&conv.ID, &conv.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.CreatedAt = time.UnixMilli(created)
	conv.UpdatedAt = time.UnixMilli(updated)
	conv.Messages = make([]*model.Message, 0)

	if err := d.loadMessages(ctx, map[string]*model.Conversation{conv.ID: &conv}); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *DB) loadMessages(ctx context.Context, into map[string]*model.Conversation) error {
	if len(into) == 0 {
		return nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, suggestions, created_at
		FROM messages ORDER BY conversation_id, seq`)
	if err != nil {
		return fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg         model.Message
			convID      string
			role        string
			suggestions string
			created     int64
		)
		if err := rows.Scan(&msg.ID, &convID, &role, &msg.Content, &suggestions, &created); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		conv, ok := into[convID]
		if !ok {
			continue
		}
		msg.Role = model.Role(role)
		msg.CreatedAt = time.UnixMilli(created)
		if err := json.Unmarshal([]byte(suggestions), &msg.Suggestions); err != nil {
			msg.Suggestions = nil
		}
		if len(msg.Suggestions) == 0 {
			msg.Suggestions = nil
		}
		conv.Messages = append(conv.Messages, &msg)
	}
	return rows.Err()
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns metadata for all archived conversations, most recent first.
func (d *DB) List(ctx context.Context) ([]ConversationMeta, error) {
	return d.queryMeta(ctx, "", nil)
}

// Search finds conversations whose title or messages contain query,
// case-insensitively.
func (d *DB) Search(ctx context.Context, query string) ([]ConversationMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return d.List(ctx)
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	where := `WHERE lower(c.title) LIKE ? ESCAPE '\'
		OR EXISTS (SELECT 1 FROM messages m2 WHERE m2.conversation_id = c.id AND lower(m2.content) LIKE ? ESCAPE '\')`
	return d.queryMeta(ctx, where, []interface{}{pattern, pattern})
}

func (d *DB) queryMeta(ctx context.Context, where string, args []interface{}) ([]ConversationMeta, error) {
	query := `
		SELECT c.id, c.title, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
			COALESCE((SELECT m.content FROM messages m
				WHERE m.conversation_id = c.id AND m.role = 'user' ORDER BY m.seq LIMIT 1), '')
		FROM conversations c ` + where + `
		ORDER BY c.updated_at DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var (
			meta             ConversationMeta
			created, updated int64
			preview          string
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &created, &updated, &meta.MessageCount, &preview); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		meta.CreatedAt = time.UnixMilli(created)
		meta.UpdatedAt = time.UnixMilli(updated)
		meta.Preview = util.TruncateWidth(util.SingleLine(preview), previewWidth)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
