package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) UpsertChat(ctx context.Context, chat *db.ChatConfig) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO chats (id, title, notify_manual, notify_auto, notify_removal, approved_at)
		VALUES (:id, :title, :notify_manual, :notify_auto, :notify_removal, :approved_at)
		ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		notify_manual = excluded.notify_manual,
		notify_auto = excluded.notify_auto,
		notify_removal = excluded.notify_removal
	`
	if _, err := s.db.NamedExecContext(ctx, query, chat); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func (s *sqliteClient) GetChat(ctx context.Context, chatID int64) (*db.ChatConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	chat := &db.ChatConfig{}
	err := s.db.GetContext(ctx, chat, `
		SELECT id, title, notify_manual, notify_auto, notify_removal, approved_at
		FROM chats WHERE id = ?
	`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}

func (s *sqliteClient) GetChats(ctx context.Context) ([]*db.ChatConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var chats []*db.ChatConfig
	err := s.db.SelectContext(ctx, &chats, `
		SELECT id, title, notify_manual, notify_auto, notify_removal, approved_at
		FROM chats ORDER BY approved_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get chats: %w", err)
	}
	return chats, nil
}

func (s *sqliteClient) DeleteChat(ctx context.Context, chatID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}
