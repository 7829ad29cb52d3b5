package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/db"
)

type chatConfigGetter interface {
	GetChat(ctx context.Context, chatID int64) (*db.ChatConfig, error)
}

// Notifier posts short-lived moderation notices to chats, honoring the
// per-chat notification toggles. Notices are removed after the TTL so
// moderated groups do not fill up with bot chatter.
//
// It is a lifecycle component: Stop waits for pending removals.
type Notifier struct {
	transport Transport
	chats     chatConfigGetter
	ttl       time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotifier(transport Transport, chats chatConfigGetter, ttl time.Duration) *Notifier {
	return &Notifier{
		transport: transport,
		chats:     chats,
		ttl:       ttl,
	}
}

func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctx, n.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return nil
}

func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify posts text to the chat if the toggle for the category is on.
// Unknown chats get notices, the toggles only ever opt out.
func (n *Notifier) Notify(ctx context.Context, chatID int64, category db.NotifyCategory, text string) {
	cfg, err := n.chats.GetChat(ctx, chatID)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		log.WithError(err).WithField("chat_id", chatID).Warn("cant read chat config, posting notice anyway")
	default:
		enabled := true
		switch category {
		case db.NotifyManual:
			enabled = cfg.NotifyManual
		case db.NotifyAuto:
			enabled = cfg.NotifyAuto
		case db.NotifyRemoval:
			enabled = cfg.NotifyRemoval
		}
		if !enabled {
			return
		}
	}

	messageID, err := n.transport.SendMessage(ctx, chatID, text)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("cant post notice")
		return
	}
	n.scheduleRemoval(chatID, messageID)
}

func (n *Notifier) scheduleRemoval(chatID int64, messageID int) {
	n.mu.Lock()
	ctx := n.ctx
	n.mu.Unlock()
	if ctx == nil {
		// Not started, leave the notice in place.
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.ttl):
		}
		deleteCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.transport.DeleteMessage(deleteCtx, chatID, messageID); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Debug("cant remove notice")
		}
	}()
}
