package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibin/wa-bridge/internal/adapters/secondary/repository"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
)

func newMessaging(t *testing.T, connected bool) (*MessagingService, *fakeMessenger, *repository.InMemoryRepository) {
	t.Helper()
	messenger := &fakeMessenger{connected: connected}
	repo := repository.NewInMemoryRepository(logger.Nop())
	return NewMessagingService(messenger, repo, nil, logger.Nop()), messenger, repo
}

func TestSendMessageValidation(t *testing.T) {
	svc, messenger, _ := newMessaging(t, true)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "", "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SendMessage(ctx, "15551234567", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SendMessage(ctx, "not a number", "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	assert.Empty(t, messenger.Sent())
}

func TestSendMessageNotConnected(t *testing.T) {
	svc, _, _ := newMessaging(t, false)

	_, err := svc.SendMessage(context.Background(), "15551234567", "hello")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSendMessageSendsAndRecords(t *testing.T) {
	svc, messenger, repo := newMessaging(t, true)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "+1 555 123 4567", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "OUT1", res.MessageID)

	sent := messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "15551234567@s.whatsapp.net", sent[0].chatID)
	assert.Equal(t, "hello there", sent[0].text)

	msgs, err := repo.ListMessages(ctx, "15551234567@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].FromMe)
	assert.Equal(t, "hello there", msgs[0].Body)
	assert.Equal(t, "10000@s.whatsapp.net", msgs[0].Author)
}

func TestSendMessageTransportError(t *testing.T) {
	svc, messenger, _ := newMessaging(t, true)
	messenger.sendErr = errBoom

	_, err := svc.SendMessage(context.Background(), "15551234567", "hello")
	assert.ErrorIs(t, err, errBoom)
}

func TestRecordMessageRequiresIDs(t *testing.T) {
	svc, _, _ := newMessaging(t, true)
	err := svc.RecordMessage(context.Background(), &domain.Message{Body: "x"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListChatsFillsNames(t *testing.T) {
	svc, _, _ := newMessaging(t, true)
	ctx := context.Background()

	require.NoError(t, svc.RecordMessage(ctx, &domain.Message{ID: "a", ChatID: "1@s.whatsapp.net", Body: "old", Timestamp: 10}, "Alice"))
	require.NoError(t, svc.RecordMessage(ctx, &domain.Message{ID: "b", ChatID: "2@s.whatsapp.net", Body: "new", Timestamp: 20}, ""))

	chats, err := svc.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "2@s.whatsapp.net", chats[0].ID)
	assert.Equal(t, "2", chats[0].Name)
	assert.Equal(t, "Alice", chats[1].Name)
	assert.Equal(t, "old", chats[1].LastMessage.Body)
}

func TestListMessages(t *testing.T) {
	svc, _, _ := newMessaging(t, true)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		msg := &domain.Message{ID: string(rune('A' + i)), ChatID: "1@s.whatsapp.net", Body: "m", Timestamp: int64(i)}
		require.NoError(t, svc.RecordMessage(ctx, msg, ""))
	}

	msgs, err := svc.ListMessages(ctx, "1@c.us", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultMessageLimit)
	assert.Equal(t, int64(10), msgs[0].Timestamp)
	assert.Equal(t, int64(59), msgs[len(msgs)-1].Timestamp)

	msgs, err = svc.ListMessages(ctx, "1@s.whatsapp.net", 500)
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultMessageLimit)

	msgs, err = svc.ListMessages(ctx, "1@s.whatsapp.net", 5)
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
	assert.Equal(t, int64(55), msgs[0].Timestamp)
}

func TestListMessagesUnknownChat(t *testing.T) {
	svc, _, _ := newMessaging(t, true)

	_, err := svc.ListMessages(context.Background(), "999@s.whatsapp.net", 10)
	assert.ErrorIs(t, err, domain.ErrChatNotFound)

	_, err = svc.ListMessages(context.Background(), "", 10)
	assert.ErrorIs(t, err, domain.ErrChatNotFound)
}

func TestRecordChat(t *testing.T) {
	svc, _, repo := newMessaging(t, true)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RecordChat(ctx, &domain.Chat{}), domain.ErrInvalidInput)

	require.NoError(t, svc.RecordChat(ctx, &domain.Chat{ID: "120363025246125486@g.us", Name: "Family"}))
	chat, err := repo.GetChat(ctx, "120363025246125486@g.us")
	require.NoError(t, err)
	assert.Equal(t, "Family", chat.Name)
	assert.True(t, chat.IsGroup)
}
