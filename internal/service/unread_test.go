package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/messenger/internal/model"
)

func TestMarkRead_RemovesOnlyThatUsersMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	msg := env.send(t, conv.ID, "alice", "hi")

	// A second marker shows that only the reader's marker goes away.
	require.NoError(t, env.unread.MarkUnread(ctx, msg.ID, []string{"auditor"}))
	assert.Equal(t, []string{"auditor", "bob"}, env.markerUsers(t, msg.ID))

	require.NoError(t, env.unread.MarkRead(ctx, msg.ID, "bob"))
	assert.Equal(t, []string{"auditor"}, env.markerUsers(t, msg.ID))

	got, err := env.store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead, "message stays unread while markers remain")
}

func TestMarkRead_LastMarkerFlagsMessageRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	msg := env.send(t, conv.ID, "alice", "hi")

	require.NoError(t, env.unread.MarkRead(ctx, msg.ID, "bob"))

	got, err := env.store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.Empty(t, env.markerUsers(t, msg.ID))
}

func TestMarkRead_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv := env.conversation(t, "alice", "bob")
	msg := env.send(t, conv.ID, "alice", "hi")

	require.NoError(t, env.unread.MarkRead(ctx, msg.ID, "bob"))
	require.NoError(t, env.unread.MarkRead(ctx, msg.ID, "bob"))
	require.NoError(t, env.unread.MarkRead(ctx, "missing", "bob"))
	require.NoError(t, env.unread.MarkRead(ctx, msg.ID, "alice"))
}

func TestListUnreadForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.unread.pageSize = 2

	c1 := env.conversation(t, "alice", "bob")
	c2 := env.conversation(t, "carol", "bob")

	var want []string
	for i := 0; i < 3; i++ {
		want = append(want, env.send(t, c1.ID, "alice", "from alice").ID)
		want = append(want, env.send(t, c2.ID, "carol", "from carol").ID)
	}
	env.send(t, c1.ID, "bob", "reply")

	var got []string
	var prev model.Message
	for msg, err := range env.unread.ListUnreadForUser(ctx, "bob") {
		require.NoError(t, err)
		if prev.ID != "" {
			assert.False(t, msg.CreatedAt.Before(prev.CreatedAt))
		}
		got = append(got, msg.ID)
		prev = msg
	}
	assert.Equal(t, want, got)

	count, err := env.unread.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestListUnreadForUser_StopsEarly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.unread.pageSize = 2
	conv := env.conversation(t, "alice", "bob")
	for i := 0; i < 5; i++ {
		env.send(t, conv.ID, "alice", "hi")
	}

	seen := 0
	for _, err := range env.unread.ListUnreadForUser(ctx, "bob") {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestMarkConversationRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c1 := env.conversation(t, "alice", "bob")
	c2 := env.conversation(t, "carol", "bob")
	a1 := env.send(t, c1.ID, "alice", "one")
	a2 := env.send(t, c1.ID, "alice", "two")
	other := env.send(t, c2.ID, "carol", "elsewhere")

	read, err := env.unread.MarkConversationRead(ctx, c1.ID, "bob")
	require.NoError(t, err)
	require.Len(t, read, 2)
	assert.Equal(t, a1.ID, read[0].ID)
	assert.Equal(t, a2.ID, read[1].ID)
	assert.True(t, read[0].IsRead)

	assert.Equal(t, []string{"bob"}, env.markerUsers(t, other.ID))

	again, err := env.unread.MarkConversationRead(ctx, c1.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, again)
}
