package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/messenger/internal/model"
)

func TestAppend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")

	first := env.send(t, conv.ID, "alice", "hello")
	second := env.send(t, conv.ID, "bob", "")

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.IsRead)
	assert.Equal(t, "alice", first.SenderID)

	resp, err := env.messages.List(ctx, conv.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, first.ID, resp.Messages[0].ID)
	assert.Equal(t, second.ID, resp.Messages[1].ID)
	assert.False(t, resp.Messages[1].CreatedAt.Before(resp.Messages[0].CreatedAt))
	assert.Equal(t, "", resp.Messages[1].Text)
	assert.False(t, resp.HasMore)

	assert.Equal(t, []string{"bob"}, env.markerUsers(t, first.ID))
	assert.Equal(t, []string{"alice"}, env.markerUsers(t, second.ID))

	created := env.events.ofType(model.EventTypeMessageCreated)
	require.Len(t, created, 2)
	assert.Equal(t, conv.ID, created[0].ConversationID)
	assert.Equal(t, first.ID, created[0].Messages[0].ID)
}

func TestAppend_InitiallyRead(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t, "alice", "bob")

	msg, err := env.messages.Append(context.Background(), conv.ID, "alice", "seen already", true)
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
	assert.Empty(t, env.markerUsers(t, msg.ID))
}

func TestAppend_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")

	_, err := env.messages.Append(ctx, "missing", "alice", "hi", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.messages.Append(ctx, conv.ID, "mallory", "hi", false)
	assert.ErrorIs(t, err, ErrForbidden)

	resp, err := env.messages.List(ctx, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Messages)
}

func TestBulkUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	m1 := env.send(t, conv.ID, "alice", "one")
	m2 := env.send(t, conv.ID, "alice", "two")

	err := env.messages.BulkUpdate(ctx, []model.MessageUpdate{
		{ID: m1.ID, Text: "one (edited)", IsRead: true},
		{ID: m2.ID, Text: "two", IsRead: false},
	}, "alice")
	require.NoError(t, err)

	got1, err := env.store.GetMessage(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, "one (edited)", got1.Text)
	assert.True(t, got1.IsRead)
	assert.True(t, got1.CreatedAt.Equal(m1.CreatedAt), "createdAt is immutable")
	assert.Empty(t, env.markerUsers(t, m1.ID))

	assert.Equal(t, []string{"bob"}, env.markerUsers(t, m2.ID))

	updated := env.events.ofType(model.EventTypeMessageUpdated)
	require.Len(t, updated, 1)
	assert.Len(t, updated[0].Messages, 2)
}

func TestBulkUpdate_ReadToUnreadRestoresMarkers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	msg, err := env.messages.Append(ctx, conv.ID, "alice", "hi", true)
	require.NoError(t, err)

	require.NoError(t, env.messages.BulkUpdate(ctx, []model.MessageUpdate{
		{ID: msg.ID, Text: "hi", IsRead: false},
	}, "alice"))

	assert.Equal(t, []string{"bob"}, env.markerUsers(t, msg.ID))
}

func TestBulkUpdate_ForbiddenLeavesEverythingUnmodified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	own := env.send(t, conv.ID, "alice", "mine")
	foreign := env.send(t, conv.ID, "bob", "theirs")

	err := env.messages.BulkUpdate(ctx, []model.MessageUpdate{
		{ID: own.ID, Text: "changed", IsRead: true},
		{ID: foreign.ID, Text: "hijacked", IsRead: true},
	}, "alice")
	require.ErrorIs(t, err, ErrForbidden)

	gotOwn, err := env.store.GetMessage(ctx, own.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", gotOwn.Text)
	assert.False(t, gotOwn.IsRead)
	assert.Equal(t, []string{"bob"}, env.markerUsers(t, own.ID))

	gotForeign, err := env.store.GetMessage(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "theirs", gotForeign.Text)

	assert.Empty(t, env.events.ofType(model.EventTypeMessageUpdated))
}

func TestBulkUpdate_NotFoundIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	msg := env.send(t, conv.ID, "alice", "original")

	err := env.messages.BulkUpdate(ctx, []model.MessageUpdate{
		{ID: msg.ID, Text: "changed", IsRead: true},
		{ID: "missing", Text: "x"},
	}, "alice")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := env.store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text)
}

func TestBulkUpdate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.messages.BulkUpdate(ctx, nil, "alice"), ErrValidation)
	assert.ErrorIs(t, env.messages.BulkUpdate(ctx, []model.MessageUpdate{{Text: "x"}}, "alice"), ErrValidation)
}

func TestList_Limits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	for i := 0; i < 3; i++ {
		env.send(t, conv.ID, "alice", "msg")
	}

	resp, err := env.messages.List(ctx, conv.ID, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, resp.Messages, 2)
	assert.True(t, resp.HasMore)

	older, err := env.messages.List(ctx, conv.ID, resp.Messages[0].CreatedAt, 2)
	require.NoError(t, err)
	assert.Len(t, older.Messages, 1)
	assert.False(t, older.HasMore)
}
