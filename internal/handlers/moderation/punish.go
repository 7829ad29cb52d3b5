package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/i18n"
	"github.com/guardbot/guardbot/internal/observability"
)

// Transport is the subset of Telegram operations enforcement needs.
type Transport interface {
	RestrictUser(ctx context.Context, chatID, userID int64, until time.Time) error
	UnrestrictUser(ctx context.Context, chatID, userID int64) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
}

type punishStore interface {
	InsertSpammer(ctx context.Context, spammer *db.Spammer) error
	RemoveSpammer(ctx context.Context, userID int64) (bool, error)
	InsertPunishment(ctx context.Context, p *db.Punishment) (int64, error)
	GetUserChats(ctx context.Context, userID int64) ([]int64, error)
}

// Enforcer turns a pipeline Outcome into Telegram actions and audit
// records. Each step is attempted even if an earlier one failed, a
// flaky delete must not lose the restriction.
type Enforcer struct {
	transport Transport
	store     punishStore
	notifier  *Notifier
	lang      string
}

func NewEnforcer(transport Transport, store punishStore, notifier *Notifier, lang string) *Enforcer {
	return &Enforcer{
		transport: transport,
		store:     store,
		notifier:  notifier,
		lang:      lang,
	}
}

// Apply executes the punishment for one flagged message.
func (e *Enforcer) Apply(ctx context.Context, t *Target, o *Outcome) {
	entry := log.WithFields(log.Fields{
		"chat_id": t.ChatID,
		"user_id": t.UserID,
		"reason":  o.Reason,
	})
	if !o.Reason.Valid() {
		entry.Warn("punishment with a reason outside the enum")
	}

	until := time.Now().Add(o.MuteFor)
	if err := e.transport.RestrictUser(ctx, t.ChatID, t.UserID, until); err != nil {
		entry.WithError(err).Error("cant restrict user")
	}

	if !o.KeepMessage {
		if err := e.transport.DeleteMessage(ctx, t.ChatID, t.MessageID); err != nil {
			entry.WithError(err).Error("cant delete message")
		}
	}

	if _, err := e.store.InsertPunishment(ctx, &db.Punishment{
		UserID:      t.UserID,
		Username:    t.Username,
		ChatID:      t.ChatID,
		Date:        time.Now(),
		MessageText: t.Text,
		Reason:      o.Reason,
		Source:      o.Source,
	}); err != nil {
		entry.WithError(err).Error("cant write punishment record")
	}

	if o.Reason.MarksSpammer() {
		if err := e.store.InsertSpammer(ctx, &db.Spammer{
			UserID:      t.UserID,
			ChatID:      t.ChatID,
			Date:        time.Now(),
			MessageText: t.Text,
			Reason:      o.Reason,
		}); err != nil {
			entry.WithError(err).Error("cant flag spammer")
		}
	}

	observability.RecordPunishment(string(o.Reason))

	if o.NoticeKey != "" && e.notifier != nil {
		text := fmt.Sprintf(i18n.Get(o.NoticeKey, e.lang), t.Username)
		e.notifier.Notify(ctx, t.ChatID, o.Reason.Category(), text)
	}

	entry.Info("punishment applied")
}

// Unmute lifts restrictions in every chat the user is known from and
// clears the spammer flag. Used by the manual unmute command. A chat
// where the unrestrict fails is logged and skipped, the remaining
// chats and the flag removal still proceed.
func (e *Enforcer) Unmute(ctx context.Context, userID int64, username string) error {
	chats, err := e.store.GetUserChats(ctx, userID)
	if err != nil {
		return errors.WithMessage(err, "cant list user chats")
	}

	var g errgroup.Group
	for _, chatID := range chats {
		chatID := chatID
		g.Go(func() error {
			if err := e.transport.UnrestrictUser(ctx, chatID, userID); err != nil {
				log.WithFields(log.Fields{
					"chat_id": chatID,
					"user_id": userID,
				}).WithError(err).Error("cant unrestrict user")
			}
			return nil
		})
	}
	_ = g.Wait()

	removed, err := e.store.RemoveSpammer(ctx, userID)
	if err != nil {
		return errors.WithMessage(err, "cant clear spammer flag")
	}
	if !removed {
		log.WithFields(log.Fields{
			"user_id":  userID,
			"username": username,
		}).Info("unmute for a user not in the spammer set")
	}

	return nil
}
