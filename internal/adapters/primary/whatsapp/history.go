package whatsapp

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

type webMessageParser func(chat types.JID, msg *waWeb.WebMessageInfo) (*events.Message, error)

// handleHistorySync stores the conversations and messages sent by the phone
// after pairing
func (a *WhatsAppAdapter) handleHistorySync(evt *events.HistorySync) {
	if a.client == nil {
		return
	}
	a.importHistory(evt, a.client.ParseWebMessage)
}

func (a *WhatsAppAdapter) importHistory(evt *events.HistorySync, parse webMessageParser) {
	if a.sink == nil || evt == nil || evt.Data == nil {
		return
	}
	ctx := a.baseCtx

	conversations := evt.Data.GetConversations()
	a.log.Info("Processing history sync", "type", evt.Data.GetSyncType().String(), "conversations", len(conversations))

	stored := 0
	for _, conv := range conversations {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil || chatJID.Server == types.BroadcastServer {
			continue
		}
		chatJID = chatJID.ToNonAD()

		chat := &domain.Chat{
			ID:      chatJID.String(),
			Name:    conv.GetName(),
			IsGroup: chatJID.Server == types.GroupServer,
		}
		if ts := conv.GetConversationTimestamp(); ts > 0 {
			chat.UpdatedAt = time.Unix(int64(ts), 0)
		}
		if chat.Name != "" {
			a.chatNames.Store(chat.ID, chat.Name)
		}
		if err := a.sink.RecordChat(ctx, chat); err != nil {
			a.log.Warn("Failed to store synced chat", "chat_id", chat.ID, "error", err)
			continue
		}

		for _, hm := range conv.GetMessages() {
			webMsg := hm.GetMessage()
			if webMsg == nil {
				continue
			}
			parsed, err := parse(chatJID, webMsg)
			if err != nil {
				a.log.Debug("Failed to parse synced message", "chat_id", chat.ID, "error", err)
				continue
			}
			msg, ok := toDomainMessage(parsed)
			if !ok {
				continue
			}
			if err := a.sink.RecordMessage(ctx, msg, chat.Name); err != nil {
				a.log.Warn("Failed to store synced message", "chat_id", chat.ID, "message_id", msg.ID, "error", err)
				continue
			}
			a.metrics.MessageReceived("history")
			stored++
		}
	}

	a.log.Info("History sync stored", "messages", stored)
}
