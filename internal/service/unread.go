package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/capitalize-ai/messenger/internal/model"
	"github.com/capitalize-ai/messenger/internal/store"
	"github.com/capitalize-ai/messenger/pkg/logger"
	"github.com/capitalize-ai/messenger/pkg/metrics"
)

const defaultUnreadPageSize = 100

// UnreadService maintains which users have not yet read which messages.
type UnreadService struct {
	store    store.Store
	logger   *logger.Logger
	pageSize int
}

// NewUnreadService creates a new unread index.
func NewUnreadService(st store.Store, log *logger.Logger) *UnreadService {
	return &UnreadService{
		store:    st,
		logger:   log,
		pageSize: defaultUnreadPageSize,
	}
}

// bind returns a copy of the service operating on st, typically a
// transaction-bound store.
func (s *UnreadService) bind(st store.Store) *UnreadService {
	bound := *s
	bound.store = st
	return &bound
}

// MarkUnread creates one marker per recipient for the message.
func (s *UnreadService) MarkUnread(ctx context.Context, messageID string, recipients []string) error {
	n, err := s.store.InsertUnreadMarkers(ctx, messageID, recipients, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("marking message unread: %w", err)
	}
	metrics.RecordMarkers("created", n)
	return nil
}

// MarkRead removes the marker for (messageID, userID). Removing a marker
// that does not exist is a no-op. Once no markers remain the message is
// flagged read.
func (s *UnreadService) MarkRead(ctx context.Context, messageID, userID string) error {
	_, err := s.markRead(ctx, messageID, userID)
	return err
}

func (s *UnreadService) markRead(ctx context.Context, messageID, userID string) (bool, error) {
	var removed bool
	err := s.store.Tx(ctx, func(tx store.Store) error {
		var err error
		removed, err = tx.DeleteUnreadMarker(ctx, messageID, userID)
		if err != nil {
			return fmt.Errorf("clearing unread marker: %w", err)
		}
		if !removed {
			return nil
		}

		remaining, err := tx.CountUnreadMarkers(ctx, messageID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.SetMessageRead(ctx, messageID, true); err != nil {
				return fmt.Errorf("flagging message read: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		metrics.RecordMarkers("cleared", 1)
	}
	return removed, nil
}

// clearAll drops every marker of a message.
func (s *UnreadService) clearAll(ctx context.Context, messageID string) error {
	n, err := s.store.DeleteUnreadMarkers(ctx, messageID)
	if err != nil {
		return fmt.Errorf("clearing unread markers: %w", err)
	}
	metrics.RecordMarkers("cleared", n)
	return nil
}

// MarkConversationRead clears every marker userID holds in the conversation
// and returns the messages that became read.
func (s *UnreadService) MarkConversationRead(ctx context.Context, conversationID, userID string) ([]model.Message, error) {
	var read []model.Message
	err := s.store.Tx(ctx, func(tx store.Store) error {
		unread, err := tx.ListUnreadInConversation(ctx, conversationID, userID)
		if err != nil {
			return err
		}

		bound := s.bind(tx)
		for _, msg := range unread {
			if _, err := bound.markRead(ctx, msg.ID, userID); err != nil {
				return err
			}
			current, err := tx.GetMessage(ctx, msg.ID)
			if err != nil {
				return fmt.Errorf("reloading message: %w", err)
			}
			read = append(read, *current)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return read, nil
}

// ListUnreadForUser yields the messages userID has not read, oldest first.
// Pages are fetched from the store as the sequence is consumed; iteration
// stops at the first error.
func (s *UnreadService) ListUnreadForUser(ctx context.Context, userID string) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		var (
			afterTime time.Time
			afterID   string
		)
		for {
			page, err := s.store.ListUnreadForUser(ctx, userID, afterTime, afterID, s.pageSize)
			if err != nil {
				yield(model.Message{}, fmt.Errorf("listing unread messages: %w", err))
				return
			}
			for _, msg := range page {
				if !yield(msg, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			afterTime, afterID = last.CreatedAt, last.ID
		}
	}
}

// CountUnread returns how many messages userID has not read.
func (s *UnreadService) CountUnread(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return n, nil
}
