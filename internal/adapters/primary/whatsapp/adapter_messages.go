package whatsapp

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

// handleMessage records a live message and hands qualifying ones to the responder
func (a *WhatsAppAdapter) handleMessage(evt *events.Message) {
	if evt.Info.Chat.Server == types.BroadcastServer {
		return
	}

	msg, ok := toDomainMessage(evt)
	if !ok {
		return
	}

	if a.markProcessed(evt.Info.ID, time.Now()) {
		a.log.Debug("Skipping already processed message", "message_id", evt.Info.ID)
		return
	}
	a.metrics.MessageReceived("live")

	ctx := a.baseCtx
	if a.sink != nil {
		name := a.chatName(ctx, evt.Info.Chat, contactFallback(evt))
		if err := a.sink.RecordMessage(ctx, msg, name); err != nil {
			a.log.Error("Failed to store message", "chat_id", msg.ChatID, "message_id", msg.ID, "error", err)
		}
	}

	if a.responder == nil || !a.responder.ShouldHandle(msg) {
		return
	}

	a.log.Info("Received message for auto reply", "chat_id", msg.ChatID, "message_id", msg.ID)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.responder.HandleIncoming(ctx, msg); err != nil {
			a.log.Error("Auto reply failed", "chat_id", msg.ChatID, "message_id", msg.ID, "error", err)
		}
	}()
}

// toDomainMessage converts a whatsmeow message event. It reports false for
// events that carry no storable content, such as reactions or protocol messages.
func toDomainMessage(evt *events.Message) (*domain.Message, bool) {
	if evt == nil || evt.Info.ID == "" {
		return nil, false
	}
	body, msgType, ok := extractContent(evt.Message)
	if !ok {
		return nil, false
	}

	info := evt.Info
	msg := &domain.Message{
		ID:        info.ID,
		ChatID:    info.Chat.ToNonAD().String(),
		Body:      body,
		Timestamp: info.Timestamp.Unix(),
		FromMe:    info.IsFromMe,
		Author:    info.Sender.ToNonAD().String(),
		PushName:  info.PushName,
		Type:      msgType,
		IsGroup:   info.IsGroup,
	}
	if info.Timestamp.IsZero() {
		msg.Timestamp = time.Now().Unix()
	}

	switch {
	case info.Sender.Server == types.DefaultUserServer:
		msg.SenderPhone = info.Sender.User
	case info.SenderAlt.Server == types.DefaultUserServer:
		msg.SenderPhone = info.SenderAlt.User
	}
	return msg, true
}

// extractContent returns the text (or caption) of a message and its kind
func extractContent(m *waE2E.Message) (string, domain.MessageType, bool) {
	if m == nil {
		return "", "", false
	}

	switch {
	case m.GetConversation() != "":
		return m.GetConversation(), domain.MessageTypeText, true
	case m.GetExtendedTextMessage() != nil:
		return m.GetExtendedTextMessage().GetText(), domain.MessageTypeText, true
	case m.GetImageMessage() != nil:
		return m.GetImageMessage().GetCaption(), domain.MessageTypeImage, true
	case m.GetVideoMessage() != nil:
		return m.GetVideoMessage().GetCaption(), domain.MessageTypeVideo, true
	case m.GetAudioMessage() != nil:
		return "", domain.MessageTypeAudio, true
	case m.GetDocumentMessage() != nil:
		doc := m.GetDocumentMessage()
		if doc.GetCaption() != "" {
			return doc.GetCaption(), domain.MessageTypeDocument, true
		}
		return doc.GetFileName(), domain.MessageTypeDocument, true
	case m.GetStickerMessage() != nil:
		return "", domain.MessageTypeSticker, true
	case m.GetLocationMessage() != nil:
		return m.GetLocationMessage().GetName(), domain.MessageTypeOther, true
	case m.GetContactMessage() != nil:
		return m.GetContactMessage().GetDisplayName(), domain.MessageTypeOther, true
	}
	return "", "", false
}

// contactFallback is the name to use for a one-to-one chat when the contact
// store knows nothing better
func contactFallback(evt *events.Message) string {
	if evt.Info.IsGroup || evt.Info.IsFromMe {
		return ""
	}
	return evt.Info.PushName
}

// chatName resolves a readable chat name: the group subject, the contact's
// saved or push name, else fallback. Failed lookups are not retried for
// nameRetryAfter, since the handler runs on whatsmeow's event goroutine.
func (a *WhatsAppAdapter) chatName(ctx context.Context, jid types.JID, fallback string) string {
	key := jid.ToNonAD().String()
	if cached, ok := a.chatNames.Load(key); ok {
		return cached.(string)
	}
	if missedAt, ok := a.nameMisses.Load(key); ok && time.Since(missedAt.(time.Time)) < nameRetryAfter {
		return fallback
	}

	name := a.resolveName(ctx, jid)
	if name == "" {
		a.nameMisses.Store(key, time.Now())
		return fallback
	}
	a.nameMisses.Delete(key)
	a.chatNames.Store(key, name)
	return name
}

func (a *WhatsAppAdapter) lookupName(ctx context.Context, jid types.JID) string {
	if a.client == nil {
		return ""
	}

	if jid.Server == types.GroupServer {
		info, err := a.client.GetGroupInfo(ctx, jid)
		if err != nil {
			a.log.Debug("Failed to get group info", "jid", jid.String(), "error", err)
			return ""
		}
		return info.Name
	}

	contact, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil || !contact.Found {
		return ""
	}
	for _, name := range []string{contact.FullName, contact.FirstName, contact.BusinessName, contact.PushName} {
		if name != "" {
			return name
		}
	}
	return ""
}
