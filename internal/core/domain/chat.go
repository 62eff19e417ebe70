package domain

import "time"

// MessagePreview is the short form of a chat's most recent message
type MessagePreview struct {
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// Chat represents a WhatsApp conversation, either one-to-one or a group
type Chat struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	IsGroup     bool            `json:"isGroup"`
	LastMessage *MessagePreview `json:"lastMessage"`
	UpdatedAt   time.Time       `json:"-"`
}

// Message represents a single message in a chat.
// Timestamp is in Unix seconds.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"-"`
	Body      string      `json:"body"`
	Timestamp int64       `json:"timestamp"`
	FromMe    bool        `json:"fromMe"`
	Author    string      `json:"author"`
	PushName  string      `json:"-"`
	Type      MessageType `json:"-"`
	IsGroup   bool        `json:"-"`

	// SenderPhone is the phone-number user part of the sender when known,
	// even if Author carries a hidden (lid) identity.
	SenderPhone string `json:"-"`
}

// Preview returns the message as a chat preview
func (m Message) Preview() *MessagePreview {
	return &MessagePreview{Body: m.Body, Timestamp: m.Timestamp}
}

// Time converts the Unix timestamp to a time.Time
func (m Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

// SendResult is what the client reports after delivering a message
type SendResult struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Sender    string `json:"-"`
	Timestamp int64  `json:"timestamp"`
}

// GroupInfo contains information about a joined WhatsApp group
type GroupInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}
