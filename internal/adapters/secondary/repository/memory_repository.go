package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
)

type chatEntry struct {
	chat     domain.Chat
	messages []domain.Message
	index    map[string]int
}

// InMemoryRepository implements the MessageRepositoryPort interface with in-memory storage
type InMemoryRepository struct {
	chats  map[string]*chatEntry
	mutex  sync.RWMutex
	logger logger.Logger
}

// NewInMemoryRepository creates a new InMemoryRepository
func NewInMemoryRepository(log logger.Logger) *InMemoryRepository {
	return &InMemoryRepository{
		chats:  make(map[string]*chatEntry),
		logger: log,
	}
}

// SaveChat inserts a chat or merges it into the stored one
func (r *InMemoryRepository) SaveChat(ctx context.Context, chat *domain.Chat) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e := r.entry(chat.ID)
	if chat.Name != "" {
		e.chat.Name = chat.Name
	}
	e.chat.IsGroup = e.chat.IsGroup || chat.IsGroup
	if chat.UpdatedAt.After(e.chat.UpdatedAt) {
		e.chat.UpdatedAt = chat.UpdatedAt
	}
	return nil
}

// SaveMessage inserts or replaces a message, keeping the chat's messages in timestamp order
func (r *InMemoryRepository) SaveMessage(ctx context.Context, msg *domain.Message) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e := r.entry(msg.ChatID)
	if i, ok := e.index[msg.ID]; ok {
		e.messages[i] = *msg
	} else {
		e.messages = append(e.messages, *msg)
	}

	sort.SliceStable(e.messages, func(i, j int) bool {
		return e.messages[i].Timestamp < e.messages[j].Timestamp
	})
	for i, m := range e.messages {
		e.index[m.ID] = i
	}

	if t := msg.Time(); t.After(e.chat.UpdatedAt) {
		e.chat.UpdatedAt = t
	}
	return nil
}

// GetChat retrieves a chat by ID
func (r *InMemoryRepository) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, exists := r.chats[id]
	if !exists {
		r.logger.Debug("Chat not found", "chat_id", id)
		return nil, fmt.Errorf("%w: %s", domain.ErrChatNotFound, id)
	}
	return e.snapshot(), nil
}

// ListChats returns all chats, most recently active first
func (r *InMemoryRepository) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	chats := make([]*domain.Chat, 0, len(r.chats))
	for _, e := range r.chats {
		chats = append(chats, e.snapshot())
	}
	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].UpdatedAt.Equal(chats[j].UpdatedAt) {
			return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
		}
		return chats[i].ID < chats[j].ID
	})
	return chats, nil
}

// ListMessages returns the newest limit messages of a chat, oldest first
func (r *InMemoryRepository) ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, exists := r.chats[chatID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrChatNotFound, chatID)
	}

	start := 0
	if limit > 0 && len(e.messages) > limit {
		start = len(e.messages) - limit
	}
	out := make([]*domain.Message, 0, len(e.messages)-start)
	for i := start; i < len(e.messages); i++ {
		m := e.messages[i]
		out = append(out, &m)
	}
	return out, nil
}

// Close is a no-op
func (r *InMemoryRepository) Close() error {
	return nil
}

// entry must be called with the write lock held
func (r *InMemoryRepository) entry(id string) *chatEntry {
	e, ok := r.chats[id]
	if !ok {
		e = &chatEntry{
			chat:  domain.Chat{ID: id, IsGroup: domain.IsGroupChat(id)},
			index: make(map[string]int),
		}
		r.chats[id] = e
	}
	return e
}

func (e *chatEntry) snapshot() *domain.Chat {
	c := e.chat
	if n := len(e.messages); n > 0 {
		c.LastMessage = e.messages[n-1].Preview()
	}
	return &c
}
