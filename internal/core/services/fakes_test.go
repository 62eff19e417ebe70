package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/ports"
)

type fakeMessenger struct {
	mu        sync.Mutex
	connected bool
	sendErr   error
	sent      []sentMessage
	typing    []bool
	nextID    int
}

type sentMessage struct {
	chatID string
	text   string
	quoted string
}

func (f *fakeMessenger) IsConnected() bool { return f.connected }

func (f *fakeMessenger) SendText(ctx context.Context, chatID, text string) (*domain.SendResult, error) {
	return f.send(chatID, text, "")
}

func (f *fakeMessenger) SendReply(ctx context.Context, original *domain.Message, text string) (*domain.SendResult, error) {
	return f.send(original.ChatID, text, original.ID)
}

func (f *fakeMessenger) send(chatID, text, quoted string) (*domain.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, quoted: quoted})
	return &domain.SendResult{
		MessageID: fmt.Sprintf("OUT%d", f.nextID),
		ChatID:    chatID,
		Sender:    "10000@s.whatsapp.net",
		Timestamp: int64(1000 + f.nextID),
	}, nil
}

func (f *fakeMessenger) SetTyping(ctx context.Context, chatID string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
	return nil
}

func (f *fakeMessenger) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]domain.ChatTurn
}

func (f *fakeLLM) GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]domain.ChatTurn(nil), turns...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"provider": "fake", "model": "test"}, nil
}

func (f *fakeLLM) lastCall() []domain.ChatTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type fakeSearch struct {
	results []ports.SearchResult
	err     error
	queries []string
}

func (f *fakeSearch) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func (f *fakeSearch) DetectSearchIntent(message string) bool {
	return true
}

var errBoom = errors.New("boom")
