// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/store"
)

// Compile-time check that DB can back a store.
var _ store.Archiver = (*DB)(nil)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleConversation(title string, updated time.Time) *model.Conversation {
	conv := model.NewConversation(false)
	conv.Title = title
	user := model.NewUserMessage(title + " question")
	ai := model.NewMessage(model.RoleAssistant, title+" answer")
	ai.Suggestions = []string{"Why?", "How?"}
	conv.Messages = []*model.Message{user, ai}
	conv.UpdatedAt = updated
	return conv
}

func TestSaveAndLoad(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	older := sampleConversation("older", now.Add(-time.Hour))
	newer := sampleConversation("newer", now)
	require.NoError(t, db.SaveConversation(ctx, older))
	require.NoError(t, db.SaveConversation(ctx, newer))

	convs, err := db.LoadConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)
	assert.Equal(t, older.ID, convs[1].ID)

	got := convs[0]
	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "newer answer", got.Messages[1].Content)
	assert.Equal(t, []string{"Why?", "How?"}, got.Messages[1].Suggestions)
	assert.Nil(t, got.Messages[0].Suggestions)
	assert.True(t, got.UpdatedAt.Equal(now))

	limited, err := db.LoadConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}

func TestSave_ReplacesAndSkipsStreaming(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := sampleConversation("topic", time.Now())
	require.NoError(t, db.SaveConversation(ctx, conv))

	pending := model.NewAssistantMessage()
	conv.Messages = append(conv.Messages, model.NewUserMessage("follow up"), pending)
	conv.Title = "renamed"
	require.NoError(t, db.SaveConversation(ctx, conv))

	got, err := db.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "follow up", got.Messages[2].Content)
}

func TestSave_RejectsEphemeral(t *testing.T) {
	db := openTestDB(t)
	conv := model.NewConversation(true)
	assert.ErrorIs(t, db.SaveConversation(context.Background(), conv), ErrEphemeral)
}

func TestDeleteConversation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := sampleConversation("gone", time.Now())
	require.NoError(t, db.SaveConversation(ctx, conv))
	require.NoError(t, db.DeleteConversation(ctx, conv.ID))

	_, err := db.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, db.DeleteConversation(ctx, conv.ID), ErrConversationNotFound)
}

func TestListAndSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := sampleConversation("Golang channels", time.Now().Add(-time.Minute))
	b := sampleConversation("French history", time.Now())
	require.NoError(t, db.SaveConversation(ctx, a))
	require.NoError(t, db.SaveConversation(ctx, b))

	metas, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, b.ID, metas[0].ID)
	assert.Equal(t, 2, metas[0].MessageCount)
	assert.Equal(t, "French history question", metas[0].Preview)

	found, err := db.Search(ctx, "CHANNELS")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	found, err = db.Search(ctx, "history answer")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	found, err = db.Search(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	db.MaxConversations = 0
	ctx := context.Background()

	base := time.Now()
	var ids []string
	for i := 0; i < 5; i++ {
		conv := sampleConversation("c", base.Add(time.Duration(i)*time.Second))
		ids = append(ids, conv.ID)
		require.NoError(t, db.SaveConversation(ctx, conv))
	}

	n, err := db.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	convs, err := db.LoadConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, ids[4], convs[0].ID)
	assert.Equal(t, ids[3], convs[1].ID)

	// Messages of pruned conversations go with them.
	var count int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count))
	assert.Equal(t, 4, count)
}

func TestStoreArchivesThroughDB(t *testing.T) {
	db := openTestDB(t)
	st := store.New(store.WithArchiver(db))

	ai := model.NewAssistantMessage()
	id := st.StartConversation(false, "hello", model.NewUserMessage("hello"), ai)
	require.NoError(t, st.BeginStream(id, ai.ID))
	require.True(t, st.Finalize(id, ai.ID, "hi there", []string{"More?"}))

	got, err := db.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hi there", got.Messages[1].Content)

	st.Delete(id)
	_, err = db.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
