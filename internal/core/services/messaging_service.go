package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

const (
	// DefaultMessageLimit is used when no limit is given, and is also the maximum
	DefaultMessageLimit = 50
)

// MessagingService implements sending, chat listing and message history
type MessagingService struct {
	messenger  ports.MessengerPort
	repository ports.MessageRepositoryPort
	metrics    *observability.Metrics
	logger     logger.Logger
}

// NewMessagingService creates a new MessagingService
func NewMessagingService(messenger ports.MessengerPort, repository ports.MessageRepositoryPort, metrics *observability.Metrics, logger logger.Logger) *MessagingService {
	return &MessagingService{
		messenger:  messenger,
		repository: repository,
		metrics:    metrics,
		logger:     logger,
	}
}

// SendMessage sends a text message to a phone number or chat ID
func (s *MessagingService) SendMessage(ctx context.Context, number, message string) (*domain.SendResult, error) {
	number = strings.TrimSpace(number)
	if number == "" || strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: number and message are required", domain.ErrInvalidInput)
	}

	chatID, err := domain.NormalizeChatID(number)
	if err != nil {
		return nil, err
	}

	if !s.messenger.IsConnected() {
		return nil, domain.ErrNotConnected
	}

	s.logger.Info("Sending message", "chat_id", chatID)
	res, err := s.messenger.SendText(ctx, chatID, message)
	if err != nil {
		s.logger.Error("Failed to send message", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("send to %s: %w", chatID, err)
	}

	s.RecordSent(ctx, message, res, "api")
	return res, nil
}

// RecordSent stores a message this client just sent. Storage failures are
// logged only, since the message has already been delivered.
func (s *MessagingService) RecordSent(ctx context.Context, body string, res *domain.SendResult, source string) {
	if res == nil {
		return
	}
	s.metrics.MessageSent(source)

	ts := res.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	msg := &domain.Message{
		ID:        res.MessageID,
		ChatID:    res.ChatID,
		Body:      body,
		Timestamp: ts,
		FromMe:    true,
		Author:    res.Sender,
		Type:      domain.MessageTypeText,
		IsGroup:   domain.IsGroupChat(res.ChatID),
	}
	if err := s.RecordMessage(ctx, msg, ""); err != nil {
		s.logger.Warn("Failed to store sent message", "chat_id", res.ChatID, "message_id", res.MessageID, "error", err)
	}
}

// RecordMessage upserts a message and its chat. An empty chatName keeps
// whatever name is already stored.
func (s *MessagingService) RecordMessage(ctx context.Context, msg *domain.Message, chatName string) error {
	if msg == nil || msg.ID == "" || msg.ChatID == "" {
		return fmt.Errorf("%w: message id and chat id are required", domain.ErrInvalidInput)
	}

	chat := &domain.Chat{
		ID:        msg.ChatID,
		Name:      chatName,
		IsGroup:   msg.IsGroup || domain.IsGroupChat(msg.ChatID),
		UpdatedAt: msg.Time(),
	}
	if err := s.repository.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	if err := s.repository.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RecordChat registers a chat that may have no messages yet. An empty name
// keeps whatever name is already stored.
func (s *MessagingService) RecordChat(ctx context.Context, chat *domain.Chat) error {
	if chat == nil || chat.ID == "" {
		return fmt.Errorf("%w: chat id is required", domain.ErrInvalidInput)
	}
	if err := s.repository.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// ListChats returns every known chat, most recent activity first
func (s *MessagingService) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	chats, err := s.repository.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chatActivity(chats[i]) > chatActivity(chats[j])
	})
	for _, c := range chats {
		if c.Name == "" {
			c.Name = domain.PhoneUser(c.ID)
		}
	}
	return chats, nil
}

// ListMessages returns up to limit of the newest messages of a chat, oldest first
func (s *MessagingService) ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error) {
	id, err := domain.NormalizeChatID(chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChatNotFound, chatID)
	}

	if limit <= 0 || limit > DefaultMessageLimit {
		limit = DefaultMessageLimit
	}

	if _, err := s.repository.GetChat(ctx, id); err != nil {
		return nil, err
	}

	msgs, err := s.repository.ListMessages(ctx, id, limit)
	if err != nil {
		if errors.Is(err, domain.ErrChatNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func chatActivity(c *domain.Chat) int64 {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.UpdatedAt.Unix()
}
