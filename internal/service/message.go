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

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// MessageService is the append-only message ledger of each conversation.
type MessageService struct {
	store  store.Store
	unread *UnreadService
	events emitter
	logger *logger.Logger
}

// NewMessageService creates a new message service. publisher may be nil.
func NewMessageService(
	st store.Store,
	unread *UnreadService,
	publisher EventPublisher,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		store:  st,
		unread: unread,
		events: emitter{publisher: publisher, logger: log},
		logger: log,
	}
}

// Append adds a message to a conversation. senderID must be a participant.
// Unless the message starts out read, every other participant gets an
// unread marker in the same transaction.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID, text string, isRead bool) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		IsRead:         isRead,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.store.Tx(ctx, func(tx store.Store) error {
		conv, err := tx.GetConversation(ctx, conversationID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("loading conversation: %w", err)
		}
		if !conv.HasParticipant(senderID) {
			return fmt.Errorf("sender is not a participant: %w", ErrForbidden)
		}

		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		if isRead {
			return nil
		}
		return s.unread.bind(tx).MarkUnread(ctx, msg.ID, recipients(conv, senderID))
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesTotal.Inc()
	s.events.emit(ctx, model.EventTypeMessageCreated, senderID, []model.Message{*msg})

	return msg, nil
}

// BulkUpdate overwrites text and read state of the listed messages in one
// transaction. Every message must have been sent by requesterID; if any entry
// is missing or foreign nothing is applied.
func (s *MessageService) BulkUpdate(ctx context.Context, updates []model.MessageUpdate, requesterID string) error {
	if len(updates) == 0 {
		return invalid("messages", "must not be empty")
	}
	for i, u := range updates {
		if u.ID == "" {
			return invalid(fmt.Sprintf("messages[%d].id", i), "is required")
		}
	}

	var updated []model.Message
	err := s.store.Tx(ctx, func(tx store.Store) error {
		current := make(map[string]*model.Message, len(updates))
		for _, u := range updates {
			if _, ok := current[u.ID]; ok {
				continue
			}
			msg, err := tx.GetMessage(ctx, u.ID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("message %s: %w", u.ID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("loading message: %w", err)
			}
			if msg.SenderID != requesterID {
				metrics.AuthorizationFailures.WithLabelValues("bulk_update").Inc()
				return fmt.Errorf("message %s belongs to another sender: %w", u.ID, ErrForbidden)
			}
			current[u.ID] = msg
		}

		unread := s.unread.bind(tx)
		for _, u := range updates {
			msg := current[u.ID]
			wasRead := msg.IsRead

			if err := tx.UpdateMessage(ctx, u.ID, u.Text, u.IsRead); err != nil {
				return fmt.Errorf("updating message %s: %w", u.ID, err)
			}

			switch {
			case !wasRead && u.IsRead:
				if err := unread.clearAll(ctx, u.ID); err != nil {
					return err
				}
			case wasRead && !u.IsRead:
				conv, err := tx.GetConversation(ctx, msg.ConversationID)
				if err != nil {
					return fmt.Errorf("loading conversation: %w", err)
				}
				if err := unread.MarkUnread(ctx, u.ID, recipients(conv, msg.SenderID)); err != nil {
					return err
				}
			}

			msg.Text = u.Text
			msg.IsRead = u.IsRead
		}

		for _, u := range updates {
			if msg, ok := current[u.ID]; ok {
				updated = append(updated, *msg)
				delete(current, u.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.MessagesUpdated.Add(float64(len(updated)))
	s.logger.Debug("messages updated",
		zap.String("requester_id", requesterID),
		zap.Int("count", len(updated)),
	)
	s.events.emit(ctx, model.EventTypeMessageUpdated, requesterID, updated)

	return nil
}

// List returns a page of a conversation's history, oldest first. before
// bounds the page to messages created earlier; zero means the latest page.
func (s *MessageService) List(ctx context.Context, conversationID string, before time.Time, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	msgs, err := s.store.ListMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	return &model.ListMessagesResponse{
		Messages: msgs,
		HasMore:  len(msgs) == limit,
	}, nil
}

// recipients returns every participant of conv except the sender.
func recipients(conv *model.Conversation, senderID string) []string {
	var out []string
	for _, p := range conv.Participants() {
		if p != senderID {
			out = append(out, p)
		}
	}
	return out
}
