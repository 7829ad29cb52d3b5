package chat

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/db"
)

type allowedStore interface {
	GetChats(ctx context.Context) ([]*db.ChatConfig, error)
}

// AllowedChats is a read-through cache of the approved chat set. The
// bot ignores every group not in it. Entries expire after the TTL and
// admin commands invalidate the cache on writes, so approval changes
// propagate without a restart.
type AllowedChats struct {
	store allowedStore
	ttl   time.Duration

	mu        sync.Mutex
	ids       map[int64]struct{}
	fetchedAt time.Time
}

func NewAllowedChats(store allowedStore, ttl time.Duration) *AllowedChats {
	return &AllowedChats{
		store: store,
		ttl:   ttl,
	}
}

// Contains reports whether the chat is approved. A refresh failure
// keeps serving the previous snapshot, an unreachable database must
// not open the bot up to every chat or shut it down in approved ones.
func (a *AllowedChats) Contains(ctx context.Context, chatID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ids == nil || time.Since(a.fetchedAt) > a.ttl {
		if err := a.refreshLocked(ctx); err != nil {
			log.WithError(err).Error("cant refresh allowed chats")
		}
	}
	_, ok := a.ids[chatID]
	return ok
}

// Invalidate drops the snapshot so the next Contains reloads it.
func (a *AllowedChats) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchedAt = time.Time{}
}

func (a *AllowedChats) refreshLocked(ctx context.Context) error {
	chats, err := a.store.GetChats(ctx)
	if err != nil {
		if a.ids == nil {
			a.ids = make(map[int64]struct{})
		}
		return err
	}
	ids := make(map[int64]struct{}, len(chats))
	for _, chat := range chats {
		ids[chat.ID] = struct{}{}
	}
	a.ids = ids
	a.fetchedAt = time.Now()
	return nil
}
