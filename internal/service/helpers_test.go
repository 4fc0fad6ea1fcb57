package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/internal/presence"
	"github.com/capitalize-ai/messenger/internal/store"
	"github.com/capitalize-ai/messenger/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.MessageEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *model.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t model.EventType) []*model.MessageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*model.MessageEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store         *store.SQLiteStore
	conversations *ConversationService
	messages      *MessageService
	unread        *UnreadService
	delivery      *DeliveryService
	presence      *presence.Registry
	events        *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewNop()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	events := &recordingPublisher{}
	reg := presence.NewRegistry(0)
	convs := NewConversationService(st, log)
	unread := NewUnreadService(st, log)
	msgs := NewMessageService(st, unread, events, log)

	return &testEnv{
		store:         st,
		conversations: convs,
		messages:      msgs,
		unread:        unread,
		delivery:      NewDeliveryService(convs, msgs, unread, reg, events, log),
		presence:      reg,
		events:        events,
	}
}

func (e *testEnv) conversation(t *testing.T, a, b string) *model.Conversation {
	t.Helper()
	conv, _, err := e.conversations.FindOrCreate(context.Background(), a, b)
	require.NoError(t, err)
	return conv
}

func (e *testEnv) send(t *testing.T, convID, sender, text string) *model.Message {
	t.Helper()
	msg, err := e.messages.Append(context.Background(), convID, sender, text, false)
	require.NoError(t, err)
	return msg
}

func (e *testEnv) markerUsers(t *testing.T, messageID string) []string {
	t.Helper()
	markers, err := e.store.ListUnreadMarkers(context.Background(), messageID)
	require.NoError(t, err)
	users := []string{}
	for _, m := range markers {
		users = append(users, m.UserID)
	}
	return users
}

func strPtr(s string) *string { return &s }
