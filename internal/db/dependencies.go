package db

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type Client interface {
	Close() error

	// Message history, append-only.
	InsertMessage(ctx context.Context, msg *Message) error
	CountUserMessages(ctx context.Context, chatID, userID int64) (int, error)
	// GetUserIDByUsername resolves a handle to the most recent sender of
	// that handle in history. Heuristic: handles can be renamed or reused,
	// the latest history row wins. Returns ErrNotFound on a miss.
	GetUserIDByUsername(ctx context.Context, username string) (int64, error)
	GetUserChats(ctx context.Context, userID int64) ([]int64, error)

	// Spammer set. Membership here is the banned state.
	IsSpammer(ctx context.Context, userID int64) (bool, error)
	InsertSpammer(ctx context.Context, spammer *Spammer) error
	// RemoveSpammer reports whether the user was actually in the set, so
	// callers can log removal of an absent user as a no-op.
	RemoveSpammer(ctx context.Context, userID int64) (bool, error)

	// Punishment audit log, append-only.
	InsertPunishment(ctx context.Context, p *Punishment) (int64, error)
	GetPunishmentsByChat(ctx context.Context, chatID int64) ([]*Punishment, error)

	// Approved chats and their notification toggles.
	UpsertChat(ctx context.Context, chat *ChatConfig) error
	GetChat(ctx context.Context, chatID int64) (*ChatConfig, error)
	GetChats(ctx context.Context) ([]*ChatConfig, error)
	DeleteChat(ctx context.Context, chatID int64) error

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}
