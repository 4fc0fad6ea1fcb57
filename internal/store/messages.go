package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/messenger/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const messageColumns = `id, conversation_id, sender_id, text, is_read, created_at`

// InsertMessage persists a new message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, text, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.IsRead, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return msg, err
}

// UpdateMessage overwrites the mutable fields of a message.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id, text string, isRead bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE messages SET text = ?, is_read = ? WHERE id = ?`, text, isRead, id)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	return expectOneRow(res)
}

// SetMessageRead sets only the read flag of a message.
func (s *SQLiteStore) SetMessageRead(ctx context.Context, id string, isRead bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE messages SET is_read = ? WHERE id = ?`, isRead, id)
	if err != nil {
		return fmt.Errorf("updating message read state: %w", err)
	}
	return expectOneRow(res)
}

// ListMessages returns up to limit messages of a conversation created before
// the given time (zero means no bound), ordered oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if !before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTime(before))
	}
	// Take the newest page, then flip it back to chronological order.
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		msg       model.Message
		createdAt string
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.IsRead, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	msg.CreatedAt = t
	return &msg, nil
}

func collectMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
