package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) InsertMessage(ctx context.Context, msg *db.Message) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT OR IGNORE INTO chat_history (message_id, chat_id, user_id, username, text, type, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.UserID,
		msg.Username,
		msg.Text,
		msg.Type,
		msg.Date,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *sqliteClient) CountUserMessages(ctx context.Context, chatID, userID int64) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM chat_history WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return count, nil
}

func (s *sqliteClient) GetUserIDByUsername(ctx context.Context, username string) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	// Latest history row for the handle wins. Known gap: a reused or
	// renamed handle resolves to whoever used it last.
	var userID int64
	err := s.db.GetContext(ctx, &userID, `
		SELECT user_id FROM chat_history
		WHERE username = ?
		ORDER BY message_id DESC
		LIMIT 1
	`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, db.ErrNotFound
		}
		return 0, fmt.Errorf("resolve username: %w", err)
	}
	return userID, nil
}

func (s *sqliteClient) GetUserChats(ctx context.Context, userID int64) ([]int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var chatIDs []int64
	err := s.db.SelectContext(ctx, &chatIDs,
		`SELECT DISTINCT chat_id FROM chat_history WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user chats: %w", err)
	}
	return chatIDs, nil
}
