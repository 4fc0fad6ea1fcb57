package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/messenger/internal/middleware"
	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/internal/presence"
	"github.com/capitalize-ai/messenger/internal/service"
	"github.com/capitalize-ai/messenger/internal/store"
	"github.com/capitalize-ai/messenger/pkg/logger"
)

const testSecret = "handler-test-secret"

type testServer struct {
	store  *store.SQLiteStore
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	convs := service.NewConversationService(st, log)
	unread := service.NewUnreadService(st, log)
	msgs := service.NewMessageService(st, unread, nil, log)
	delivery := service.NewDeliveryService(convs, msgs, unread, presence.NewRegistry(0), nil, log)

	return &testServer{
		store: st,
		router: NewRouter(RouterConfig{
			Delivery:  delivery,
			Health:    NewHealthHandler(st, nil),
			Logger:    log,
			JWTSecret: testSecret,
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := middleware.IssueToken(testSecret, userID, jwt.RegisteredClaims{})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) send(t *testing.T, from, to, text string) model.CreateMessageResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/messages", from, map[string]any{
		"recipientId": to,
		"text":        text,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.CreateMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateMessage_Anonymous(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/messages", "", map[string]any{
		"recipientId": "2",
		"text":        "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	convs, err := s.store.ListConversationsForUser(context.Background(), "2")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestCreateMessage_Scenario(t *testing.T) {
	s := newTestServer(t)

	first := s.send(t, "1", "2", "hi")
	require.NotNil(t, first.Message)
	assert.Equal(t, "1", first.Message.SenderID)
	assert.Equal(t, "hi", first.Message.Text)
	assert.False(t, first.Message.IsRead)
	require.NotNil(t, first.Sender)
	assert.Equal(t, "1", first.Sender.ID)

	second := s.send(t, "1", "2", "still there?")
	assert.Equal(t, first.Message.ConversationID, second.Message.ConversationID)

	reply := s.do(t, http.MethodPost, "/api/v1/messages", "2", map[string]any{
		"conversationId": first.Message.ConversationID,
		"recipientId":    "1",
		"text":           "yes",
		"isRead":         true,
	})
	require.Equal(t, http.StatusOK, reply.Code)
}

func TestCreateMessage_Errors(t *testing.T) {
	s := newTestServer(t)
	existing := s.send(t, "1", "2", "hi")

	tests := []struct {
		name     string
		userID   string
		body     interface{}
		wantCode int
	}{
		{"malformed json", "1", `{"text":`, http.StatusBadRequest},
		{"missing text", "1", map[string]any{"recipientId": "2"}, http.StatusBadRequest},
		{"self message", "1", map[string]any{"recipientId": "1", "text": "me"}, http.StatusBadRequest},
		{"unknown conversation", "1", map[string]any{"conversationId": "0190a6c4-5b1e-7c3a-9f0e-1d2c3b4a5f6e", "text": "x"}, http.StatusNotFound},
		{"foreign conversation", "3", map[string]any{"conversationId": existing.Message.ConversationID, "text": "x"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/messages", tt.userID, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateMessage_ValidationBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/messages", "1", map[string]any{"recipientId": "2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body validationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "text", body.Field)
	assert.NotEmpty(t, body.Reason)
}

func TestUpdateMessages(t *testing.T) {
	s := newTestServer(t)
	sent := s.send(t, "1", "2", "hi")

	update := []map[string]any{{
		"id":       sent.Message.ID,
		"senderId": "1",
		"text":     "hi",
		"isRead":   true,
	}}

	rec := s.do(t, http.MethodPut, "/api/v1/messages", "2", update)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/v1/messages", "", update)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/messages/read", "1", update)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	got, err := s.store.GetMessage(context.Background(), sent.Message.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func TestUpdateMessages_BadRequests(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/messages", "1", []map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/messages", "1", map[string]any{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/messages", "1", []map[string]any{{"id": "missing", "senderId": "1"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body validationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "messages[0].id", body.Field)

	rec = s.do(t, http.MethodPut, "/api/v1/messages", "1", []map[string]any{{"id": "0190a6c4-5b1e-7c3a-9f0e-1d2c3b4a5f6e", "senderId": "1"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnreadAndReadConversation(t *testing.T) {
	s := newTestServer(t)
	sent := s.send(t, "1", "2", "hi")
	s.send(t, "1", "2", "anyone?")

	rec := s.do(t, http.MethodGet, "/api/v1/messages/unread", "2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread model.UnreadMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unread))
	assert.Equal(t, 2, unread.Count)
	require.Len(t, unread.Messages, 2)
	assert.Equal(t, sent.Message.ID, unread.Messages[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations", "2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, 2, convs.Conversations[0].UnreadCount)
	assert.Equal(t, "1", convs.Conversations[0].OtherUserID)

	path := "/api/v1/conversations/" + sent.Message.ConversationID
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, path+"/read", "3", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, path+"/read", "2", nil).Code)

	rec = s.do(t, http.MethodGet, "/api/v1/messages/unread", "2", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unread))
	assert.Zero(t, unread.Count)

	rec = s.do(t, http.MethodGet, path+"/messages?limit=1", "1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history model.ListMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Messages, 1)
	assert.True(t, history.HasMore)
	assert.True(t, history.Messages[0].IsRead)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/conversations/nope/messages", "1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, path+"/messages?before=yesterday", "1", nil).Code)
}

func TestHeartbeat(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/api/v1/presence/heartbeat", "1", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/presence/heartbeat", "", nil).Code)
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Close())

	rec := s.do(t, http.MethodPost, "/api/v1/messages", "1", map[string]any{
		"recipientId": "2",
		"text":        "hi",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, s.store.Close())
	rec = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type disconnected struct{}

func (disconnected) IsConnected() bool { return false }

func TestReady_NATSDisconnected(t *testing.T) {
	s := newTestServer(t)
	h := NewHealthHandler(s.store, disconnected{})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
