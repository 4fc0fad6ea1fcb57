package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/internal/presence"
	"github.com/capitalize-ai/messenger/pkg/logger"
	"github.com/capitalize-ai/messenger/pkg/metrics"
	"github.com/capitalize-ai/messenger/pkg/tracing"
)

// MaxTextLength bounds the size of a message body in bytes.
const MaxTextLength = 10000

// DeliveryService is the request-facing surface. It authorizes callers and
// composes the conversation directory, the ledger and the unread index.
type DeliveryService struct {
	conversations *ConversationService
	messages      *MessageService
	unread        *UnreadService
	presence      presence.Service
	events        emitter
	logger        *logger.Logger
}

// NewDeliveryService creates a new delivery service. presence and publisher
// may be nil.
func NewDeliveryService(
	conversations *ConversationService,
	messages *MessageService,
	unread *UnreadService,
	presenceSvc presence.Service,
	publisher EventPublisher,
	log *logger.Logger,
) *DeliveryService {
	return &DeliveryService{
		conversations: conversations,
		messages:      messages,
		unread:        unread,
		presence:      presenceSvc,
		events:        emitter{publisher: publisher, logger: log},
		logger:        log,
	}
}

// CreateMessage sends a message from requesterID. With a conversation ID the
// requester must be a participant of that conversation; without one the
// conversation with the recipient is found or created.
func (s *DeliveryService) CreateMessage(ctx context.Context, requesterID string, req *model.CreateMessageRequest) (_ *model.CreateMessageResponse, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "DeliveryService.CreateMessage")
	defer func() { endSpan(span, err) }()

	if requesterID == "" {
		return nil, ErrUnauthenticated
	}
	if req.Text == nil {
		return nil, invalid("text", "is required")
	}
	if err := validateText("text", *req.Text); err != nil {
		return nil, err
	}

	sender := &model.SenderSnapshot{ID: requesterID}
	if req.Sender != nil {
		snapshot := *req.Sender
		snapshot.ID = requesterID
		snapshot.Online = false
		sender = &snapshot
	}

	var conv *model.Conversation
	if req.ConversationID != "" {
		conv, err = s.conversations.FindByID(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if !conv.HasParticipant(requesterID) {
			metrics.AuthorizationFailures.WithLabelValues("create_message").Inc()
			return nil, fmt.Errorf("requester is not a participant: %w", ErrForbidden)
		}
		if req.RecipientID != "" && req.RecipientID != conv.OtherParticipant(requesterID) {
			return nil, invalid("recipientId", "does not match the conversation")
		}
	} else {
		var created bool
		conv, created, err = s.conversations.FindOrCreate(ctx, requesterID, req.RecipientID)
		if err != nil {
			return nil, err
		}
		if created && s.isOnline(ctx, requesterID) {
			sender.Online = true
		}
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	msg, err := s.messages.Append(ctx, conv.ID, requesterID, *req.Text, req.IsRead)
	if err != nil {
		return nil, err
	}

	return &model.CreateMessageResponse{Message: msg, Sender: sender}, nil
}

// UpdateMessages applies a batch of edits on behalf of requesterID. Every
// entry must claim requesterID as its sender; the ledger then checks the
// persisted sender of every message as well.
func (s *DeliveryService) UpdateMessages(ctx context.Context, requesterID string, updates []model.MessageUpdate) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "DeliveryService.UpdateMessages")
	defer func() { endSpan(span, err) }()

	if requesterID == "" {
		return ErrUnauthenticated
	}
	if len(updates) == 0 {
		return invalid("messages", "must not be empty")
	}
	for i, u := range updates {
		if u.SenderID != "" && u.SenderID != requesterID {
			metrics.AuthorizationFailures.WithLabelValues("update_messages").Inc()
			return fmt.Errorf("messages[%d] claims another sender: %w", i, ErrForbidden)
		}
		if err := validateText(fmt.Sprintf("messages[%d].text", i), u.Text); err != nil {
			return err
		}
	}
	span.SetAttributes(attribute.Int("messages.count", len(updates)))

	return s.messages.BulkUpdate(ctx, updates, requesterID)
}

// ReadConversation marks everything requesterID has not read in the
// conversation as read.
func (s *DeliveryService) ReadConversation(ctx context.Context, requesterID, conversationID string) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "DeliveryService.ReadConversation")
	defer func() { endSpan(span, err) }()

	if _, err := s.participantConversation(ctx, requesterID, conversationID); err != nil {
		return err
	}

	read, err := s.unread.MarkConversationRead(ctx, conversationID, requesterID)
	if err != nil {
		return err
	}
	s.events.emit(ctx, model.EventTypeMessageRead, requesterID, read)
	return nil
}

// ListUnread returns up to limit of requesterID's unread messages, oldest
// first, along with the total unread count.
func (s *DeliveryService) ListUnread(ctx context.Context, requesterID string, limit int) (*model.UnreadMessagesResponse, error) {
	if requesterID == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	resp := &model.UnreadMessagesResponse{Messages: []model.Message{}}
	for msg, err := range s.unread.ListUnreadForUser(ctx, requesterID) {
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, msg)
		if len(resp.Messages) == limit {
			break
		}
	}

	count, err := s.unread.CountUnread(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	resp.Count = count
	return resp, nil
}

// ListConversations returns requesterID's conversations.
func (s *DeliveryService) ListConversations(ctx context.Context, requesterID string) (*model.ListConversationsResponse, error) {
	if requesterID == "" {
		return nil, ErrUnauthenticated
	}
	return s.conversations.ListForUser(ctx, requesterID)
}

// ListMessages returns a page of a conversation's history to a participant.
func (s *DeliveryService) ListMessages(ctx context.Context, requesterID, conversationID string, before time.Time, limit int) (*model.ListMessagesResponse, error) {
	if _, err := s.participantConversation(ctx, requesterID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, conversationID, before, limit)
}

// Heartbeat records requesterID as online.
func (s *DeliveryService) Heartbeat(ctx context.Context, requesterID string) error {
	if requesterID == "" {
		return ErrUnauthenticated
	}
	if s.presence == nil {
		return nil
	}
	return s.presence.MarkOnline(ctx, requesterID)
}

func (s *DeliveryService) participantConversation(ctx context.Context, requesterID, conversationID string) (*model.Conversation, error) {
	if requesterID == "" {
		return nil, ErrUnauthenticated
	}
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, fmt.Errorf("requester is not a participant: %w", ErrForbidden)
	}
	return conv, nil
}

func (s *DeliveryService) isOnline(ctx context.Context, userID string) bool {
	if s.presence == nil {
		return false
	}
	online, err := s.presence.IsOnline(ctx, userID)
	if err != nil {
		s.logger.Warn("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return online
}

func validateText(field, text string) error {
	if len(text) > MaxTextLength {
		return invalid(field, "exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return invalid(field, "must be valid UTF-8")
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
