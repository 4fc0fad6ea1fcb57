package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/messenger/internal/middleware"
	"github.com/capitalize-ai/messenger/internal/service"
	"github.com/capitalize-ai/messenger/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	delivery *service.DeliveryService
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(delivery *service.DeliveryService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		delivery: delivery,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.delivery.ListConversations(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, r, h.logger, "list_conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Messages handles GET /api/v1/conversations/:id/messages
// Supports ?limit=N and ?before=<RFC3339 timestamp> for paging backwards.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var before time.Time
	if b := r.URL.Query().Get("before"); b != "" {
		parsed, err := time.Parse(time.RFC3339Nano, b)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		before = parsed
	}

	resp, err := h.delivery.ListMessages(ctx, middleware.GetUserID(ctx), conversationID, before, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "list_messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Read handles POST /api/v1/conversations/:id/read
func (h *ConversationHandler) Read(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.delivery.ReadConversation(ctx, middleware.GetUserID(ctx), conversationID); err != nil {
		writeServiceError(w, r, h.logger, "read_conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Heartbeat handles POST /api/v1/presence/heartbeat
func (h *ConversationHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.delivery.Heartbeat(ctx, middleware.GetUserID(ctx)); err != nil {
		writeServiceError(w, r, h.logger, "heartbeat", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
