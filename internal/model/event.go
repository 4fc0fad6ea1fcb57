package model

import (
	"time"
)

// EventType represents the type of message event.
type EventType string

const (
	EventTypeMessageCreated EventType = "message.created"
	EventTypeMessageUpdated EventType = "message.updated"
	EventTypeMessageRead    EventType = "message.read"
)

// MessageEvent is published whenever the ledger changes.
type MessageEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
	ActorID        string    `json:"actorId"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"createdAt"`
}
