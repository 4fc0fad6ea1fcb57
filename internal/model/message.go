package model

import (
	"time"
)

// Message is a single message within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UnreadMarker records that a message has not been read by a user.
type UnreadMarker struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SenderSnapshot is the sender identity echoed back to the client after a
// message is created.
type SenderSnapshot struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
	Online   bool   `json:"online,omitempty"`
}

// CreateMessageRequest is the request to send a new message.
type CreateMessageRequest struct {
	ConversationID string          `json:"conversationId,omitempty"`
	RecipientID    string          `json:"recipientId"`
	Text           *string         `json:"text"`
	IsRead         bool            `json:"isRead"`
	Sender         *SenderSnapshot `json:"sender,omitempty"`
}

// CreateMessageResponse is the response after sending a message.
type CreateMessageResponse struct {
	Message *Message        `json:"message"`
	Sender  *SenderSnapshot `json:"sender"`
}

// MessageUpdate is one entry of a bulk message update.
type MessageUpdate struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
	IsRead   bool   `json:"isRead"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// UnreadMessagesResponse is the response for listing a user's unread messages.
type UnreadMessagesResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}
