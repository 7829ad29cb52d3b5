package db

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypePhoto MessageType = "photo"
	MessageTypeEvent MessageType = "event"
)

type (
	// Message is one archived chat message. Rows are never updated or
	// deleted, the history doubles as the message-count source for the
	// new-member probation window.
	Message struct {
		ID       int         `db:"message_id"`
		ChatID   int64       `db:"chat_id"`
		UserID   int64       `db:"user_id"`
		Username string      `db:"username"`
		Text     string      `db:"text"`
		Type     MessageType `db:"type"`
		Date     time.Time   `db:"date"`
	}

	// Spammer is a row in the spammer set. A user is in banned state if
	// and only if such a row exists.
	Spammer struct {
		UserID      int64     `db:"user_id"`
		ChatID      int64     `db:"chat_id"`
		Date        time.Time `db:"date"`
		MessageText string    `db:"message_text"`
		Reason      Reason    `db:"reason"`
	}

	// Punishment is one audit-log entry. Source carries the matched term
	// or link for content-based reasons, or the admin attribution for
	// manual ones.
	Punishment struct {
		ID          int64     `db:"id"`
		UserID      int64     `db:"user_id"`
		Username    string    `db:"username"`
		ChatID      int64     `db:"chat_id"`
		Date        time.Time `db:"date"`
		MessageText string    `db:"message_text"`
		Reason      Reason    `db:"reason"`
		Source      string    `db:"source"`
	}

	ChatConfig struct {
		ID            int64     `db:"id"`
		Title         string    `db:"title"`
		NotifyManual  bool      `db:"notify_manual"`
		NotifyAuto    bool      `db:"notify_auto"`
		NotifyRemoval bool      `db:"notify_removal"`
		ApprovedAt    time.Time `db:"approved_at"`
	}
)

func DefaultChatConfig(chatID int64, title string) *ChatConfig {
	return &ChatConfig{
		ID:            chatID,
		Title:         title,
		NotifyManual:  true,
		NotifyAuto:    true,
		NotifyRemoval: true,
		ApprovedAt:    time.Now(),
	}
}
