package whatsapp

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

// SendText sends a plain text message to a chat
func (a *WhatsAppAdapter) SendText(ctx context.Context, chatID, text string) (*domain.SendResult, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil || jid.User == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRecipient, chatID)
	}
	return a.send(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
}

// SendReply answers original in its chat. The text is converted to WhatsApp
// markup and, with quote_replies on, the original is quoted.
func (a *WhatsAppAdapter) SendReply(ctx context.Context, original *domain.Message, text string) (*domain.SendResult, error) {
	if original == nil {
		return nil, fmt.Errorf("%w: no message to reply to", domain.ErrInvalidInput)
	}
	jid, err := types.ParseJID(original.ChatID)
	if err != nil || jid.User == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRecipient, original.ChatID)
	}

	formatted := a.formatter.Format(text)
	return a.send(ctx, jid, buildReplyMessage(original, formatted, a.config.QuoteReplies))
}

// SetTyping shows or clears the composing indicator in a chat
func (a *WhatsAppAdapter) SetTyping(ctx context.Context, chatID string, typing bool) error {
	if !a.IsConnected() {
		return domain.ErrNotConnected
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRecipient, chatID)
	}

	state := types.ChatPresencePaused
	if typing {
		state = types.ChatPresenceComposing
	}
	return a.client.SendChatPresence(ctx, jid, state, types.ChatPresenceMediaText)
}

func (a *WhatsAppAdapter) send(ctx context.Context, jid types.JID, msg *waE2E.Message) (*domain.SendResult, error) {
	if !a.IsConnected() {
		return nil, domain.ErrNotConnected
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("send rate limit: %w", err)
	}

	resp, err := a.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	result := &domain.SendResult{
		MessageID: resp.ID,
		ChatID:    jid.ToNonAD().String(),
		Timestamp: resp.Timestamp.Unix(),
	}
	if own := a.client.Store.ID; own != nil {
		result.Sender = own.ToNonAD().String()
	}
	a.log.Info("Message sent", "chat_id", result.ChatID, "message_id", result.MessageID, "message_length", len(textOf(msg)))
	return result, nil
}

// buildReplyMessage creates the outgoing message for a reply. When quote is
// set the original is attached as a quoted message.
func buildReplyMessage(original *domain.Message, text string, quote bool) *waE2E.Message {
	if !quote || original.ID == "" {
		return &waE2E.Message{Conversation: proto.String(text)}
	}

	participant := original.Author
	if participant == "" {
		participant = original.ChatID
	}
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:    proto.String(original.ID),
				Participant: proto.String(participant),
				QuotedMessage: &waE2E.Message{
					Conversation: proto.String(original.Body),
				},
			},
		},
	}
}

func textOf(msg *waE2E.Message) string {
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return msg.GetConversation()
}
