package sqlite

import (
	"context"
	"fmt"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) IsSpammer(ctx context.Context, userID int64) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM spammers WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("check spammer: %w", err)
	}
	return count > 0, nil
}

func (s *sqliteClient) InsertSpammer(ctx context.Context, spammer *db.Spammer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO spammers (user_id, chat_id, date, message_text, reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		spammer.UserID,
		spammer.ChatID,
		spammer.Date,
		spammer.MessageText,
		spammer.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert spammer: %w", err)
	}
	return nil
}

func (s *sqliteClient) RemoveSpammer(ctx context.Context, userID int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM spammers WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("remove spammer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove spammer rows affected: %w", err)
	}
	return affected > 0, nil
}
