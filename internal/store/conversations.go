package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/capitalize-ai/messenger/internal/model"
)

// InsertConversation inserts conv, doing nothing if the pair already exists.
// The caller must normalize the pair first.
func (s *SQLiteStore) InsertConversation(ctx context.Context, conv *model.Conversation) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (participant_a, participant_b) DO NOTHING`,
		conv.ID, conv.ParticipantA, conv.ParticipantB, formatTime(conv.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// GetConversationByPair retrieves the conversation for a normalized pair.
func (s *SQLiteStore) GetConversationByPair(ctx context.Context, participantA, participantB string) (*model.Conversation, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at
		FROM conversations WHERE participant_a = ? AND participant_b = ?`,
		participantA, participantB)
	return scanConversation(row)
}

// ListConversationsForUser returns every conversation userID participates in,
// with the latest message and the user's unread count, newest activity first.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT c.id, c.participant_a, c.participant_b, c.created_at,
			(SELECT COUNT(*) FROM unread_markers u
				JOIN messages m ON m.id = u.message_id
				WHERE m.conversation_id = c.id AND u.user_id = ?) AS unread,
			lm.id, lm.sender_id, lm.text, lm.is_read, lm.created_at
		FROM conversations c
		LEFT JOIN messages lm ON lm.id = (
			SELECT id FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC LIMIT 1)
		WHERE c.participant_a = ? OR c.participant_b = ?
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC`,
		userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []model.ConversationSummary
	for rows.Next() {
		var (
			sum                                model.ConversationSummary
			createdAt                          string
			msgID, msgSender, msgText, msgTime sql.NullString
			msgRead                            sql.NullBool
		)
		if err := rows.Scan(
			&sum.ID, &sum.ParticipantA, &sum.ParticipantB, &createdAt,
			&sum.UnreadCount,
			&msgID, &msgSender, &msgText, &msgRead, &msgTime,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if sum.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		sum.OtherUserID = sum.OtherParticipant(userID)

		if msgID.Valid {
			latest := &model.Message{
				ID:             msgID.String,
				ConversationID: sum.ID,
				SenderID:       msgSender.String,
				Text:           msgText.String,
				IsRead:         msgRead.Bool,
			}
			if latest.CreatedAt, err = parseTime(msgTime.String); err != nil {
				return nil, err
			}
			sum.LatestMessage = latest
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return summaries, nil
}

func scanConversation(row *sql.Row) (*model.Conversation, error) {
	var (
		conv      model.Conversation
		createdAt string
	)
	err := row.Scan(&conv.ID, &conv.ParticipantA, &conv.ParticipantB, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &conv, nil
}
