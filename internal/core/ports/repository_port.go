package ports

import (
	"context"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

// MessageRepositoryPort defines the interface for chat and message persistence
type MessageRepositoryPort interface {
	// SaveChat inserts or updates a chat. An empty name never overwrites a known one.
	SaveChat(ctx context.Context, chat *domain.Chat) error

	// SaveMessage inserts or updates a message by (chat, id)
	SaveMessage(ctx context.Context, msg *domain.Message) error

	// GetChat retrieves a chat by ID, returning domain.ErrChatNotFound if unknown
	GetChat(ctx context.Context, id string) (*domain.Chat, error)

	// ListChats returns all chats with their last message, most recent first
	ListChats(ctx context.Context) ([]*domain.Chat, error)

	// ListMessages returns the newest limit messages of a chat, oldest first
	ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error)

	Close() error
}
