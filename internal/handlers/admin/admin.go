package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/i18n"
)

type adminStore interface {
	UpsertChat(ctx context.Context, chat *db.ChatConfig) error
	DeleteChat(ctx context.Context, chatID int64) error
	GetChat(ctx context.Context, chatID int64) (*db.ChatConfig, error)
	GetChats(ctx context.Context) ([]*db.ChatConfig, error)
	GetPunishmentsByChat(ctx context.Context, chatID int64) ([]*db.Punishment, error)
	SetKV(ctx context.Context, key, value string) error
}

type allowedInvalidator interface {
	Invalidate()
}

const punishmentListLimit = 20

// Admin handles the owner's private-chat commands: chat approval,
// notification toggles, the audit log and oracle model switching.
type Admin struct {
	s        bot.Service
	store    adminStore
	allowed  allowedInvalidator
	oracle   *moderation.Oracle
	adminIDs map[int64]struct{}
	lang     string
}

func NewAdmin(s bot.Service, allowed allowedInvalidator, oracle *moderation.Oracle, adminIDs []int64, lang string) *Admin {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Admin{
		s:        s,
		store:    s.GetDB(),
		allowed:  allowed,
		oracle:   oracle,
		adminIDs: ids,
		lang:     lang,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if chat == nil || user == nil {
		return true, nil
	}
	switch {
	case
		u.Message == nil,
		user.IsBot,
		!chat.IsPrivate(),
		!u.Message.IsCommand():
		return true, nil
	}

	if _, ok := a.adminIDs[user.ID]; !ok {
		if u.Message.Command() == "start" {
			a.reply(chat.ID, i18n.Get("Hi! I am a moderator bot", a.lang))
			return false, nil
		}
		return true, nil
	}

	m := u.Message
	entry := a.getLogEntry().WithField("command", m.Command())
	entry.Trace("admin command")

	switch m.Command() {
	case "start":
		a.reply(chat.ID, strings.Join([]string{
			i18n.Get("Hi! I am a moderator bot", a.lang),
			"/addchat <chat_id> [title]",
			"/delchat <chat_id>",
			"/chats",
			"/punishments <chat_id>",
			"/notify <chat_id> <manual|auto|removal> <on|off>",
			"/model <name>",
		}, "\n"))
		return false, nil
	case "addchat":
		return false, a.handleAddChat(ctx, m, chat.ID)
	case "delchat":
		return false, a.handleDelChat(ctx, m, chat.ID)
	case "chats":
		return false, a.handleListChats(ctx, chat.ID)
	case "punishments":
		return false, a.handlePunishments(ctx, m, chat.ID)
	case "notify":
		return false, a.handleNotify(ctx, m, chat.ID)
	case "model":
		return false, a.handleModel(ctx, m, chat.ID)
	}

	entry.Trace("unknown command")
	return true, nil
}

func (a *Admin) handleAddChat(ctx context.Context, m *api.Message, replyTo int64) error {
	args := strings.Fields(m.CommandArguments())
	if len(args) < 1 {
		a.reply(replyTo, "usage: /addchat <chat_id> [title]")
		return nil
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.reply(replyTo, "usage: /addchat <chat_id> [title]")
		return nil
	}
	title := strings.Join(args[1:], " ")

	if err := a.store.UpsertChat(ctx, db.DefaultChatConfig(chatID, title)); err != nil {
		return errors.WithMessage(err, "cant approve chat")
	}
	a.allowed.Invalidate()
	a.reply(replyTo, fmt.Sprintf("chat %d approved", chatID))
	return nil
}

func (a *Admin) handleDelChat(ctx context.Context, m *api.Message, replyTo int64) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(m.CommandArguments()), 10, 64)
	if err != nil {
		a.reply(replyTo, "usage: /delchat <chat_id>")
		return nil
	}

	if err := a.store.DeleteChat(ctx, chatID); err != nil {
		return errors.WithMessage(err, "cant remove chat")
	}
	a.allowed.Invalidate()
	a.reply(replyTo, fmt.Sprintf("chat %d removed", chatID))
	return nil
}

func (a *Admin) handleListChats(ctx context.Context, replyTo int64) error {
	chats, err := a.store.GetChats(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant list chats")
	}
	if len(chats) == 0 {
		a.reply(replyTo, "no approved chats")
		return nil
	}

	var b strings.Builder
	for _, chat := range chats {
		fmt.Fprintf(&b, "%d  %s  manual=%t auto=%t removal=%t\n",
			chat.ID, chat.Title, chat.NotifyManual, chat.NotifyAuto, chat.NotifyRemoval)
	}
	a.reply(replyTo, b.String())
	return nil
}

func (a *Admin) handlePunishments(ctx context.Context, m *api.Message, replyTo int64) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(m.CommandArguments()), 10, 64)
	if err != nil {
		a.reply(replyTo, "usage: /punishments <chat_id>")
		return nil
	}

	punishments, err := a.store.GetPunishmentsByChat(ctx, chatID)
	if err != nil {
		return errors.WithMessage(err, "cant list punishments")
	}
	if len(punishments) == 0 {
		a.reply(replyTo, "no punishments recorded")
		return nil
	}
	if len(punishments) > punishmentListLimit {
		punishments = punishments[len(punishments)-punishmentListLimit:]
	}

	var b strings.Builder
	for _, p := range punishments {
		fmt.Fprintf(&b, "%s  @%s (%d)  %s  %s\n",
			p.Date.Format("2006-01-02 15:04"), p.Username, p.UserID, p.Reason, p.Source)
	}
	a.reply(replyTo, b.String())
	return nil
}

func (a *Admin) handleNotify(ctx context.Context, m *api.Message, replyTo int64) error {
	const usage = "usage: /notify <chat_id> <manual|auto|removal> <on|off>"
	args := strings.Fields(m.CommandArguments())
	if len(args) != 3 {
		a.reply(replyTo, usage)
		return nil
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		a.reply(replyTo, usage)
		return nil
	}
	enabled := args[2] == "on"
	if args[2] != "on" && args[2] != "off" {
		a.reply(replyTo, usage)
		return nil
	}

	chat, err := a.store.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			a.reply(replyTo, fmt.Sprintf("chat %d is not approved", chatID))
			return nil
		}
		return errors.WithMessage(err, "cant read chat config")
	}

	switch args[1] {
	case "manual":
		chat.NotifyManual = enabled
	case "auto":
		chat.NotifyAuto = enabled
	case "removal":
		chat.NotifyRemoval = enabled
	default:
		a.reply(replyTo, usage)
		return nil
	}

	if err := a.store.UpsertChat(ctx, chat); err != nil {
		return errors.WithMessage(err, "cant update chat config")
	}
	a.reply(replyTo, fmt.Sprintf("chat %d: %s notices %s", chatID, args[1], args[2]))
	return nil
}

func (a *Admin) handleModel(ctx context.Context, m *api.Message, replyTo int64) error {
	modelName := strings.TrimSpace(m.CommandArguments())
	if modelName == "" {
		a.reply(replyTo, "usage: /model <name>")
		return nil
	}

	if err := a.store.SetKV(ctx, "llm_model", modelName); err != nil {
		return errors.WithMessage(err, "cant persist model choice")
	}
	a.oracle.SetModel(modelName)
	a.reply(replyTo, fmt.Sprintf("oracle model set to %s", modelName))
	return nil
}

func (a *Admin) reply(chatID int64, text string) {
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := a.s.GetBot().Send(msg); err != nil {
		a.getLogEntry().WithError(err).Error("cant send reply")
	}
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("context", "admin")
}
