// Package model defines data structures for the messaging platform.
package model

import (
	"time"
)

// Conversation is a direct-message thread between exactly two users.
// ParticipantA and ParticipantB are stored in normalized order (A < B).
type Conversation struct {
	ID           string    `json:"id"`
	ParticipantA string    `json:"participantA"`
	ParticipantB string    `json:"participantB"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Participants returns both participant IDs.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// NormalizePair orders two user IDs so that the unordered pair has a single
// stored representation.
func NormalizePair(userA, userB string) (string, string) {
	if userB < userA {
		return userB, userA
	}
	return userA, userB
}

// ConversationSummary is a conversation as seen by one of its participants.
type ConversationSummary struct {
	Conversation
	OtherUserID   string   `json:"otherUserId"`
	UnreadCount   int      `json:"unreadMessageCount"`
	LatestMessage *Message `json:"latestMessage,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}
