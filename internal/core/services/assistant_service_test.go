package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/adapters/secondary/repository"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/logger"
)

const owner = "15551234567"

func newAssistant(t *testing.T, modify func(*config.Config)) (*AssistantService, *fakeLLM, *fakeMessenger, *repository.InMemoryRepository) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AutoReply.Enabled = true
	cfg.AutoReply.Numbers = []string{"+1 555 123 4567"}
	cfg.AutoReply.HistoryLimit = 4
	if modify != nil {
		modify(cfg)
	}

	llm := &fakeLLM{reply: "sure thing"}
	messenger := &fakeMessenger{connected: true}
	repo := repository.NewInMemoryRepository(logger.Nop())
	recorder := NewMessagingService(messenger, repo, nil, logger.Nop())
	svc := NewAssistantService(llm, messenger, nil, recorder, cfg, nil, logger.Nop())
	return svc, llm, messenger, repo
}

func incoming(id, body string) *domain.Message {
	return &domain.Message{
		ID:          id,
		ChatID:      owner + "@s.whatsapp.net",
		Body:        body,
		Timestamp:   time.Now().Unix(),
		Author:      owner + "@s.whatsapp.net",
		SenderPhone: owner,
		Type:        domain.MessageTypeText,
	}
}

func TestShouldHandle(t *testing.T) {
	svc, _, _, _ := newAssistant(t, nil)

	assert.True(t, svc.ShouldHandle(incoming("1", "hi")))

	fromMe := incoming("2", "hi")
	fromMe.FromMe = true
	assert.False(t, svc.ShouldHandle(fromMe))

	group := incoming("3", "hi")
	group.ChatID = "120363025246125486@g.us"
	group.IsGroup = true
	assert.False(t, svc.ShouldHandle(group))

	image := incoming("4", "caption")
	image.Type = domain.MessageTypeImage
	assert.False(t, svc.ShouldHandle(image))

	assert.False(t, svc.ShouldHandle(incoming("5", "   ")))

	stranger := incoming("6", "hi")
	stranger.ChatID = "19998887777@s.whatsapp.net"
	stranger.Author = stranger.ChatID
	stranger.SenderPhone = "19998887777"
	assert.False(t, svc.ShouldHandle(stranger))

	// hidden identity in the chat ID, phone known only from the alternate sender
	lid := incoming("7", "hi")
	lid.ChatID = "123456789@lid"
	lid.Author = "123456789@lid"
	assert.True(t, svc.ShouldHandle(lid))

	assert.False(t, svc.ShouldHandle(nil))
}

func TestShouldHandleDisabled(t *testing.T) {
	svc, _, _, _ := newAssistant(t, func(c *config.Config) { c.AutoReply.Enabled = false })
	assert.False(t, svc.AutoReplyEnabled())
	assert.False(t, svc.ShouldHandle(incoming("1", "hi")))
}

func TestHandleIncomingReplies(t *testing.T) {
	svc, llm, messenger, repo := newAssistant(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.HandleIncoming(ctx, incoming("IN1", "what's up?")))

	sent := messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "sure thing", sent[0].text)
	assert.Equal(t, "IN1", sent[0].quoted)
	assert.Equal(t, []bool{true, false}, messenger.typing)

	turns := llm.lastCall()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleSystem, turns[0].Role)
	assert.Equal(t, domain.ChatTurn{Role: domain.RoleUser, Content: "what's up?"}, turns[1])

	msgs, err := repo.ListMessages(ctx, owner+"@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "sure thing", msgs[0].Body)
	assert.True(t, msgs[0].FromMe)
}

func TestHandleIncomingKeepsBoundedHistory(t *testing.T) {
	svc, llm, _, _ := newAssistant(t, nil)
	ctx := context.Background()

	for i, q := range []string{"one", "two", "three"} {
		require.NoError(t, svc.HandleIncoming(ctx, incoming(string(rune('a'+i)), q)))
	}

	history := svc.History(owner + "@s.whatsapp.net")
	require.Len(t, history, 4)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, domain.RoleAssistant, history[3].Role)

	// system, previous two exchanges, current question
	turns := llm.lastCall()
	require.Len(t, turns, 1+4+1)
	assert.Equal(t, "one", turns[1].Content)
	assert.Equal(t, "three", turns[len(turns)-1].Content)

	svc.ResetHistory(owner + "@s.whatsapp.net")
	assert.Empty(t, svc.History(owner+"@s.whatsapp.net"))
}

func TestHandleIncomingSkipsUnqualified(t *testing.T) {
	svc, llm, messenger, _ := newAssistant(t, nil)

	msg := incoming("1", "hi")
	msg.FromMe = true
	require.NoError(t, svc.HandleIncoming(context.Background(), msg))
	assert.Empty(t, llm.calls)
	assert.Empty(t, messenger.Sent())
}

func TestHandleIncomingLLMError(t *testing.T) {
	svc, llm, messenger, _ := newAssistant(t, nil)
	llm.err = errBoom

	err := svc.HandleIncoming(context.Background(), incoming("1", "hi"))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, messenger.Sent())
	assert.Empty(t, svc.History(owner+"@s.whatsapp.net"))
}

func TestHandleIncomingEmptyReply(t *testing.T) {
	svc, llm, messenger, _ := newAssistant(t, nil)
	llm.reply = "  \n"

	require.NoError(t, svc.HandleIncoming(context.Background(), incoming("1", "hi")))
	assert.Empty(t, messenger.Sent())
}

func TestHandleIncomingSerializedPerChat(t *testing.T) {
	svc, _, messenger, _ := newAssistant(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.HandleIncoming(context.Background(), incoming(string(rune('a'+i)), "hi")))
		}(i)
	}
	wg.Wait()

	assert.Len(t, messenger.Sent(), 5)
	assert.Len(t, svc.History(owner+"@s.whatsapp.net"), 4)
}

func TestAsk(t *testing.T) {
	svc, llm, _, _ := newAssistant(t, nil)

	_, err := svc.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	reply, err := svc.Ask(context.Background(), "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "sure thing", reply)
	assert.Equal(t, []domain.ChatTurn{{Role: domain.RoleUser, Content: "capital of France?"}}, llm.lastCall())

	llm.err = errBoom
	_, err = svc.Ask(context.Background(), "again")
	assert.ErrorIs(t, err, errBoom)
}

func TestAskWithWebSearch(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WebSearch.Enabled = true
	cfg.WebSearch.MaxResults = 1

	llm := &fakeLLM{reply: "sunny"}
	search := &fakeSearch{results: []ports.SearchResult{
		{Title: "Weather today", Link: "https://example.com/w", Snippet: "Sunny, 21C"},
		{Title: "Ignored", Link: "https://example.com/x", Snippet: "beyond max results"},
	}}
	svc := NewAssistantService(llm, &fakeMessenger{}, search, nil, cfg, nil, logger.Nop())

	_, err := svc.Ask(context.Background(), "weather today in Amsterdam")
	require.NoError(t, err)

	assert.Equal(t, []string{"weather today in Amsterdam"}, search.queries)
	prompt := llm.lastCall()[0].Content
	assert.Contains(t, prompt, "[1] Weather today")
	assert.Contains(t, prompt, "Sunny, 21C")
	assert.False(t, strings.Contains(prompt, "Ignored"))
}

func TestAskWebSearchFailureFallsBack(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WebSearch.Enabled = true

	llm := &fakeLLM{reply: "ok"}
	svc := NewAssistantService(llm, &fakeMessenger{}, &fakeSearch{err: errBoom}, nil, cfg, nil, logger.Nop())

	_, err := svc.Ask(context.Background(), "latest news")
	require.NoError(t, err)
	assert.Equal(t, "latest news", llm.lastCall()[0].Content)
}
