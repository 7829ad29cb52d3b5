package chat

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/config"
	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/i18n"
)

type moderatorStore interface {
	InsertMessage(ctx context.Context, msg *db.Message) error
	GetUserIDByUsername(ctx context.Context, username string) (int64, error)
	UpsertChat(ctx context.Context, chat *db.ChatConfig) error
}

// Moderator is the group-chat update handler. It archives every
// message, routes moderation commands and runs the rest through the
// punishment pipeline.
type Moderator struct {
	s        bot.Service
	store    moderatorStore
	allowed  *AllowedChats
	pipeline *moderation.Pipeline
	enforcer *moderation.Enforcer
	oracle   *moderation.Oracle
	notifier *moderation.Notifier
	modCfg   config.Moderation
	lang     string
}

func NewModerator(
	s bot.Service,
	allowed *AllowedChats,
	pipeline *moderation.Pipeline,
	enforcer *moderation.Enforcer,
	oracle *moderation.Oracle,
	notifier *moderation.Notifier,
	modCfg config.Moderation,
	lang string,
) *Moderator {
	m := &Moderator{
		s:        s,
		store:    s.GetDB(),
		allowed:  allowed,
		pipeline: pipeline,
		enforcer: enforcer,
		oracle:   oracle,
		notifier: notifier,
		modCfg:   modCfg,
		lang:     lang,
	}
	m.getLogEntry().Debug("created new moderator")
	return m
}

func (m *Moderator) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if u == nil || chat == nil {
		return true, nil
	}
	if chat.IsPrivate() {
		return true, nil
	}

	if u.MyChatMember != nil {
		return false, m.handleBotMembership(ctx, u.MyChatMember, chat)
	}

	if u.Message == nil || user == nil {
		return true, nil
	}

	if !m.allowed.Contains(ctx, chat.ID) {
		m.getLogEntry().WithField("chat_id", chat.ID).Trace("ignoring message from unapproved chat")
		return false, nil
	}

	msg := u.Message
	if err := m.archiveMessage(ctx, msg, user); err != nil {
		m.getLogEntry().WithError(err).Error("cant archive message")
	}

	if bot.GetMessageType(msg) == db.MessageTypeEvent {
		return false, nil
	}

	if msg.IsCommand() {
		return false, m.handleCommand(ctx, msg, chat, user)
	}

	if user.IsBot && user.ID == m.s.GetBot().Self.ID {
		return false, nil
	}

	privileged, err := m.isPrivileged(ctx, chat.ID, user.ID)
	if err != nil {
		m.getLogEntry().WithError(err).Warn("cant check member privileges, moderating anyway")
	}
	if privileged {
		return false, nil
	}

	target := &moderation.Target{
		ChatID:    chat.ID,
		MessageID: msg.MessageID,
		UserID:    user.ID,
		Username:  bot.GetUN(user),
		Text:      bot.ExtractContentFromMessage(msg),
	}
	if outcome := m.pipeline.Run(ctx, target); outcome != nil {
		m.enforcer.Apply(ctx, target, outcome)
	}
	return false, nil
}

// handleBotMembership reacts to the bot itself being added to a chat:
// greet approved chats, leave the rest.
func (m *Moderator) handleBotMembership(ctx context.Context, update *api.ChatMemberUpdated, chat *api.Chat) error {
	if update.NewChatMember.User == nil || update.NewChatMember.User.ID != m.s.GetBot().Self.ID {
		return nil
	}
	switch update.NewChatMember.Status {
	case "member", "administrator":
	default:
		return nil
	}

	entry := m.getLogEntry().WithField("chat_id", chat.ID)
	if !m.allowed.Contains(ctx, chat.ID) {
		text := fmt.Sprintf(i18n.Get("Chat *%d* is not approved\nContact the bot owner to get your chat added", m.lang), chat.ID)
		msg := api.NewMessage(chat.ID, text)
		msg.ParseMode = api.ModeMarkdown
		if _, err := m.s.GetBot().Send(msg); err != nil {
			entry.WithError(err).Error("cant send rejection")
		}
		if _, err := m.s.GetBot().Request(api.LeaveChatConfig{
			ChatConfig: api.ChatConfig{ChatID: chat.ID},
		}); err != nil {
			return errors.WithMessage(err, "cant leave unapproved chat")
		}
		entry.Info("left unapproved chat")
		return nil
	}

	if err := m.store.UpsertChat(ctx, db.DefaultChatConfig(chat.ID, chat.Title)); err != nil {
		entry.WithError(err).Error("cant store chat config")
	}
	text := fmt.Sprintf(i18n.Get("Hello, chat *%s*!\nTo do my job here I need to be an administrator", m.lang), chat.Title)
	msg := api.NewMessage(chat.ID, text)
	msg.ParseMode = api.ModeMarkdown
	if _, err := m.s.GetBot().Send(msg); err != nil {
		entry.WithError(err).Error("cant send greeting")
	}
	return nil
}

// archiveMessage records every message, admins and bots included. The
// history feeds the probation counter and the @mention lookup.
func (m *Moderator) archiveMessage(ctx context.Context, msg *api.Message, user *api.User) error {
	return m.store.InsertMessage(ctx, &db.Message{
		ID:       msg.MessageID,
		ChatID:   msg.Chat.ID,
		UserID:   user.ID,
		Username: user.UserName,
		Text:     bot.ExtractContentFromMessage(msg),
		Type:     bot.GetMessageType(msg),
		Date:     time.Unix(int64(msg.Date), 0),
	})
}

func (m *Moderator) isPrivileged(ctx context.Context, chatID, userID int64) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	member, err := m.s.GetBot().GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
	})
	if err != nil {
		return false, errors.WithMessage(err, "cant get chat member")
	}
	return isPrivilegedModerator(&member), nil
}

func (m *Moderator) getLogEntry() *log.Entry {
	return log.WithField("object", "Moderator")
}
