package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/pkg/logger"
	"github.com/capitalize-ai/messenger/pkg/metrics"
)

// EventPublisher fans ledger changes out to other consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.MessageEvent) error
}

// emitter publishes events after the owning transaction has committed.
// Failures are logged and counted; they never fail the request.
type emitter struct {
	publisher EventPublisher
	logger    *logger.Logger
}

func (e emitter) emit(ctx context.Context, eventType model.EventType, actorID string, msgs []model.Message) {
	if e.publisher == nil || len(msgs) == 0 {
		return
	}

	byConversation := make(map[string][]model.Message)
	var order []string
	for _, m := range msgs {
		if _, ok := byConversation[m.ConversationID]; !ok {
			order = append(order, m.ConversationID)
		}
		byConversation[m.ConversationID] = append(byConversation[m.ConversationID], m)
	}

	for _, convID := range order {
		event := &model.MessageEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			Type:           eventType,
			ConversationID: convID,
			ActorID:        actorID,
			Messages:       byConversation[convID],
			CreatedAt:      time.Now().UTC(),
		}
		err := e.publisher.Publish(ctx, event)
		metrics.RecordEvent(string(eventType), err)
		if err != nil {
			e.logger.Warn("failed to publish message event",
				zap.String("type", string(eventType)),
				zap.String("conversation_id", convID),
				zap.Error(err),
			)
		}
	}
}
