package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/i18n"
)

var (
	errNoTarget     = errors.New("no target user")
	errUnknownUser  = errors.New("user not found in history")
	errNotAReply    = errors.New("command is not a reply")
	errNotParseable = errors.New("cant parse command")
)

func (m *Moderator) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	defer func() {
		if _, err := m.s.GetBot().Request(api.NewDeleteMessage(chat.ID, msg.MessageID)); err != nil {
			m.getLogEntry().WithError(err).Debug("cant remove command message")
		}
	}()

	command := msg.Command()
	if command == "report" {
		return m.handleReport(ctx, msg, chat)
	}

	switch command {
	case "m", "b", "um":
	default:
		return nil
	}

	privileged, err := m.isPrivileged(ctx, chat.ID, user.ID)
	if err != nil {
		return errors.WithMessage(err, "cant check command permissions")
	}
	if !privileged {
		m.getLogEntry().WithFields(log.Fields{
			"chat_id": chat.ID,
			"user_id": user.ID,
			"command": command,
		}).Info("moderation command from a non-moderator ignored")
		return nil
	}

	switch command {
	case "m":
		return m.handleMute(ctx, msg, chat, user)
	case "b":
		return m.handleBan(ctx, msg, chat, user)
	case "um":
		return m.handleUnmute(ctx, msg, chat)
	}
	return nil
}

// commandTarget is the user a moderation command acts on, resolved from
// a reply or an @mention.
type commandTarget struct {
	userID   int64
	username string
	reply    *api.Message
}

// resolveTarget prefers the replied-to message; otherwise it resolves
// the first @mention through the chat history. The history maps a
// handle to whoever used it last, which can be stale, moderators see an
// explicit miss instead of a silent wrong guess.
func (m *Moderator) resolveTarget(ctx context.Context, msg *api.Message) (*commandTarget, error) {
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		return &commandTarget{
			userID:   reply.From.ID,
			username: bot.GetUN(reply.From),
			reply:    reply,
		}, nil
	}

	for _, arg := range strings.Fields(msg.CommandArguments()) {
		if !strings.HasPrefix(arg, "@") {
			continue
		}
		username := strings.TrimPrefix(arg, "@")
		userID, err := m.store.GetUserIDByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, errUnknownUser
			}
			return nil, errors.WithMessage(err, "cant look up username")
		}
		return &commandTarget{userID: userID, username: username}, nil
	}

	return nil, errNoTarget
}

// parseDays returns the first numeric argument, or the default link
// mute length when no duration was given.
func (m *Moderator) parseDays(msg *api.Message) (int, error) {
	for _, arg := range strings.Fields(msg.CommandArguments()) {
		if strings.HasPrefix(arg, "@") {
			continue
		}
		days, err := strconv.Atoi(arg)
		if err != nil {
			return 0, errNotParseable
		}
		if days < 1 {
			return 0, errNotParseable
		}
		return days, nil
	}
	return m.modCfg.LinkMuteDays, nil
}

func (m *Moderator) handleMute(ctx context.Context, msg *api.Message, chat *api.Chat, invoker *api.User) error {
	target, err := m.resolveTarget(ctx, msg)
	if err != nil {
		return m.sendCommandError(chat.ID, err)
	}
	days, err := m.parseDays(msg)
	if err != nil {
		return m.sendCommandError(chat.ID, err)
	}

	t := &moderation.Target{
		ChatID:   chat.ID,
		UserID:   target.userID,
		Username: target.username,
	}
	if target.reply != nil {
		t.MessageID = target.reply.MessageID
		t.Text = bot.ExtractContentFromMessage(target.reply)
	}
	m.enforcer.Apply(ctx, t, &moderation.Outcome{
		Reason:      db.ReasonManualMute,
		Source:      "@" + bot.GetUN(invoker),
		MuteFor:     time24h(days),
		KeepMessage: true,
	})

	text := fmt.Sprintf(i18n.Get("User @%s has been muted for %d days", m.lang), target.username, days)
	m.notifier.Notify(ctx, chat.ID, db.NotifyManual, text)
	return nil
}

func (m *Moderator) handleBan(ctx context.Context, msg *api.Message, chat *api.Chat, invoker *api.User) error {
	target, err := m.resolveTarget(ctx, msg)
	if err != nil {
		return m.sendCommandError(chat.ID, err)
	}

	t := &moderation.Target{
		ChatID:   chat.ID,
		UserID:   target.userID,
		Username: target.username,
	}
	keepMessage := true
	if target.reply != nil {
		t.MessageID = target.reply.MessageID
		t.Text = bot.ExtractContentFromMessage(target.reply)
		keepMessage = false
	}
	m.enforcer.Apply(ctx, t, &moderation.Outcome{
		Reason:      db.ReasonManualBan,
		Source:      "@" + bot.GetUN(invoker),
		MuteFor:     m.modCfg.PermabanDuration(),
		KeepMessage: keepMessage,
	})

	text := fmt.Sprintf(i18n.Get("_User @%s has been permanently restricted from sending messages_", m.lang), target.username)
	m.notifier.Notify(ctx, chat.ID, db.NotifyManual, text)
	return nil
}

func (m *Moderator) handleUnmute(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	target, err := m.resolveTarget(ctx, msg)
	if err != nil {
		return m.sendCommandError(chat.ID, err)
	}

	if err := m.enforcer.Unmute(ctx, target.userID, target.username); err != nil {
		return errors.WithMessage(err, "cant unmute")
	}

	text := fmt.Sprintf(i18n.Get("User @%s has been unmuted", m.lang), target.username)
	m.notifier.Notify(ctx, chat.ID, db.NotifyManual, text)
	return nil
}

// handleReport lets any member flag a message for oracle review.
func (m *Moderator) handleReport(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	reply := msg.ReplyToMessage
	if reply == nil || reply.From == nil {
		return m.sendCommandError(chat.ID, errNotAReply)
	}

	privileged, err := m.isPrivileged(ctx, chat.ID, reply.From.ID)
	if err != nil {
		return errors.WithMessage(err, "cant check report target")
	}
	if privileged {
		m.getLogEntry().WithFields(log.Fields{
			"chat_id": chat.ID,
			"user_id": reply.From.ID,
		}).Debug("report against a moderator ignored")
		return nil
	}

	t := &moderation.Target{
		ChatID:    chat.ID,
		MessageID: reply.MessageID,
		UserID:    reply.From.ID,
		Username:  bot.GetUN(reply.From),
		Text:      bot.ExtractContentFromMessage(reply),
	}

	switch m.oracle.Classify(ctx, t.Text) {
	case moderation.VerdictSpam:
		m.enforcer.Apply(ctx, t, &moderation.Outcome{
			Reason:    db.ReasonReport,
			MuteFor:   m.modCfg.PermabanDuration(),
			NoticeKey: moderation.NoticeSpam,
		})
	case moderation.VerdictOK:
		text := fmt.Sprintf(i18n.Get(moderation.NoticeClean, m.lang), t.Username)
		m.notifier.Notify(ctx, chat.ID, db.NotifyAuto, text)
	}
	return nil
}

// sendCommandError posts a usage hint. These bypass the notice toggles,
// the moderator who typed the command needs the feedback.
func (m *Moderator) sendCommandError(chatID int64, cmdErr error) error {
	var key string
	switch {
	case errors.Is(cmdErr, errUnknownUser):
		key = "Could not find that user in the chat history"
	case errors.Is(cmdErr, errNotAReply):
		key = "The command must be a reply to the message you want to report"
	case errors.Is(cmdErr, errNoTarget), errors.Is(cmdErr, errNotParseable):
		key = "The command was used incorrectly\nReply to the user's message, or mention them after the command"
	default:
		return cmdErr
	}
	reply := api.NewMessage(chatID, i18n.Get(key, m.lang))
	if _, err := m.s.GetBot().Send(reply); err != nil {
		return errors.WithMessage(err, "cant send command error")
	}
	return nil
}

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
