// Package handler provides HTTP handlers for the API.
package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/capitalize-ai/messenger/internal/middleware"
	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/internal/service"
	"github.com/capitalize-ai/messenger/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	delivery *service.DeliveryService
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(delivery *service.DeliveryService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		delivery: delivery,
		logger:   log,
	}
}

// Create handles POST /api/v1/messages
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.delivery.CreateMessage(ctx, middleware.GetUserID(ctx), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, "create_message", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /api/v1/messages and PUT /api/v1/messages/read
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var updates []model.MessageUpdate
	if !decodeBody(w, r, &updates) {
		return
	}
	for i, u := range updates {
		if err := middleware.ValidateMessageID(u.ID); err != nil {
			writeJSON(w, http.StatusBadRequest, &validationErrorResponse{
				Error:  "validation failed",
				Field:  fmt.Sprintf("messages[%d].id", i),
				Reason: err.Error(),
			})
			return
		}
	}

	if err := h.delivery.UpdateMessages(ctx, middleware.GetUserID(ctx), updates); err != nil {
		writeServiceError(w, r, h.logger, "update_messages", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unread handles GET /api/v1/messages/unread
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	resp, err := h.delivery.ListUnread(ctx, middleware.GetUserID(ctx), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "list_unread", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
