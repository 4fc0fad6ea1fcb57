// Package service provides business logic for the messaging platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/internal/store"
	"github.com/capitalize-ai/messenger/pkg/logger"
	"github.com/capitalize-ai/messenger/pkg/metrics"
)

// ConversationService owns the set of conversations and guarantees at most
// one conversation per unordered pair of users.
type ConversationService struct {
	store  store.Store
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		logger: log,
	}
}

// FindOrCreate returns the conversation between userA and userB, creating it
// if none exists. The pair is unordered. created reports whether this call
// inserted the conversation.
//
// Concurrent callers for the same pair are resolved by the unique pair index:
// the losing insert is a no-op and both callers read back the same row.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB string) (conv *model.Conversation, created bool, err error) {
	if userA == "" {
		return nil, false, invalid("userA", "is required")
	}
	if userB == "" {
		return nil, false, invalid("recipientId", "is required")
	}
	if userA == userB {
		return nil, false, invalid("recipientId", "cannot start a conversation with yourself")
	}

	a, b := model.NormalizePair(userA, userB)

	existing, err := s.store.GetConversationByPair(ctx, a, b)
	if err == nil {
		metrics.RecordLookup(false)
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up conversation: %w", err)
	}

	candidate := &model.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    time.Now().UTC(),
	}
	inserted, err := s.store.InsertConversation(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}

	conv, err = s.store.GetConversationByPair(ctx, a, b)
	if err != nil {
		return nil, false, fmt.Errorf("reading back conversation: %w", err)
	}

	metrics.RecordLookup(inserted)
	if inserted {
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("participant_a", a),
			zap.String("participant_b", b),
		)
	}
	return conv, inserted, nil
}

// FindByID retrieves a conversation. A missing conversation yields ErrNotFound.
func (s *ConversationService) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, nil
}

// ListForUser returns the conversations userID takes part in, most recently
// active first, with the user's unread counts.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) (*model.ListConversationsResponse, error) {
	convs, err := s.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	if convs == nil {
		convs = []model.ConversationSummary{}
	}
	return &model.ListConversationsResponse{Conversations: convs}, nil
}
