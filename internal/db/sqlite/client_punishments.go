package sqlite

import (
	"context"
	"fmt"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) InsertPunishment(ctx context.Context, p *db.Punishment) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO punishments (user_id, username, chat_id, date, message_text, reason, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		p.UserID,
		p.Username,
		p.ChatID,
		p.Date,
		p.MessageText,
		p.Reason,
		p.Source,
	)
	if err != nil {
		return 0, fmt.Errorf("insert punishment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert punishment id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (s *sqliteClient) GetPunishmentsByChat(ctx context.Context, chatID int64) ([]*db.Punishment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var punishments []*db.Punishment
	err := s.db.SelectContext(ctx, &punishments, `
		SELECT id, user_id, username, chat_id, date, message_text, reason, source
		FROM punishments
		WHERE chat_id = ?
		ORDER BY id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("get punishments by chat: %w", err)
	}
	return punishments, nil
}
