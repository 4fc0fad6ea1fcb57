// Package store provides relational persistence for conversations, messages
// and unread markers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/messenger/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract used by the services. Implementations
// must be safe for concurrent use.
type Store interface {
	// Tx runs fn inside a single transaction. The Store passed to fn is bound
	// to the transaction; calling Tx on it runs fn in the same transaction.
	Tx(ctx context.Context, fn func(Store) error) error

	// InsertConversation inserts conv unless a conversation for the same
	// normalized pair exists. It reports whether a row was inserted.
	InsertConversation(ctx context.Context, conv *model.Conversation) (bool, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetConversationByPair(ctx context.Context, participantA, participantB string) (*model.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error)

	InsertMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	UpdateMessage(ctx context.Context, id, text string, isRead bool) error
	SetMessageRead(ctx context.Context, id string, isRead bool) error
	ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error)

	// InsertUnreadMarkers creates a marker per user, ignoring existing ones,
	// and returns how many were created.
	InsertUnreadMarkers(ctx context.Context, messageID string, userIDs []string, at time.Time) (int, error)
	DeleteUnreadMarker(ctx context.Context, messageID, userID string) (bool, error)
	DeleteUnreadMarkers(ctx context.Context, messageID string) (int, error)
	CountUnreadMarkers(ctx context.Context, messageID string) (int, error)
	ListUnreadMarkers(ctx context.Context, messageID string) ([]model.UnreadMarker, error)
	// ListUnreadForUser returns up to limit unread messages for userID that
	// sort strictly after the (afterTime, afterID) cursor.
	ListUnreadForUser(ctx context.Context, userID string, afterTime time.Time, afterID string, limit int) ([]model.Message, error)
	ListUnreadInConversation(ctx context.Context, conversationID, userID string) ([]model.Message, error)
	CountUnreadForUser(ctx context.Context, userID string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
