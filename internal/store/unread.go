package store

import (
	"context"
	"fmt"
	"time"

	"github.com/capitalize-ai/messenger/internal/model"
)

// InsertUnreadMarkers creates one marker per user for the message.
func (s *SQLiteStore) InsertUnreadMarkers(ctx context.Context, messageID string, userIDs []string, at time.Time) (int, error) {
	created := 0
	for _, userID := range userIDs {
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO unread_markers (message_id, user_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (message_id, user_id) DO NOTHING`,
			messageID, userID, formatTime(at))
		if err != nil {
			return created, fmt.Errorf("inserting unread marker: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("reading rows affected: %w", err)
		}
		created += int(n)
	}
	return created, nil
}

// DeleteUnreadMarker removes the marker for (messageID, userID) and reports
// whether one existed.
func (s *SQLiteStore) DeleteUnreadMarker(ctx context.Context, messageID, userID string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM unread_markers WHERE message_id = ? AND user_id = ?`, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("deleting unread marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteUnreadMarkers removes every marker of a message.
func (s *SQLiteStore) DeleteUnreadMarkers(ctx context.Context, messageID string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM unread_markers WHERE message_id = ?`, messageID)
	if err != nil {
		return 0, fmt.Errorf("deleting unread markers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}

// CountUnreadMarkers returns how many users have not read the message.
func (s *SQLiteStore) CountUnreadMarkers(ctx context.Context, messageID string) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM unread_markers WHERE message_id = ?`, messageID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting unread markers: %w", err)
	}
	return n, nil
}

// ListUnreadMarkers returns the markers of a message ordered by user.
func (s *SQLiteStore) ListUnreadMarkers(ctx context.Context, messageID string) ([]model.UnreadMarker, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT message_id, user_id, created_at FROM unread_markers
		WHERE message_id = ? ORDER BY user_id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("listing unread markers: %w", err)
	}
	defer rows.Close()

	var markers []model.UnreadMarker
	for rows.Next() {
		var (
			m         model.UnreadMarker
			createdAt string
		)
		if err := rows.Scan(&m.MessageID, &m.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning unread marker: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unread markers: %w", err)
	}
	return markers, nil
}

// ListUnreadForUser returns a page of unread messages for userID ordered by
// (created_at, id), starting after the given cursor.
func (s *SQLiteStore) ListUnreadForUser(ctx context.Context, userID string, afterTime time.Time, afterID string, limit int) ([]model.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.text, m.is_read, m.created_at
		FROM unread_markers u
		JOIN messages m ON m.id = u.message_id
		WHERE u.user_id = ?`
	args := []any{userID}
	if !afterTime.IsZero() {
		t := formatTime(afterTime)
		query += ` AND (m.created_at > ? OR (m.created_at = ? AND m.id > ?))`
		args = append(args, t, t, afterID)
	}
	query += ` ORDER BY m.created_at ASC, m.id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing unread messages: %w", err)
	}
	return collectMessages(rows)
}

// ListUnreadInConversation returns the messages of a conversation that
// userID has not read, oldest first.
func (s *SQLiteStore) ListUnreadInConversation(ctx context.Context, conversationID, userID string) ([]model.Message, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.text, m.is_read, m.created_at
		FROM unread_markers u
		JOIN messages m ON m.id = u.message_id
		WHERE u.user_id = ? AND m.conversation_id = ?
		ORDER BY m.created_at ASC, m.id ASC`, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing unread conversation messages: %w", err)
	}
	return collectMessages(rows)
}

// CountUnreadForUser returns the total number of messages userID has not read.
func (s *SQLiteStore) CountUnreadForUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM unread_markers WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return n, nil
}
