package ports

import (
	"context"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

// MessengerPort is the part of the WhatsApp client the services send through
type MessengerPort interface {
	// IsConnected checks if the client has a live, logged in session
	IsConnected() bool

	// SendText sends a plain text message to a chat
	SendText(ctx context.Context, chatID, text string) (*domain.SendResult, error)

	// SendReply answers a received message, quoting it when configured
	SendReply(ctx context.Context, original *domain.Message, text string) (*domain.SendResult, error)

	// SetTyping shows or clears the composing indicator in a chat
	SetTyping(ctx context.Context, chatID string, typing bool) error
}

// WhatsAppPort is the interface for WhatsApp integration
type WhatsAppPort interface {
	MessengerPort

	// Connect establishes the connection to WhatsApp, pairing if needed
	Connect(ctx context.Context) error

	// Disconnect closes the connection to WhatsApp
	Disconnect() error

	// Start listening for messages until ctx is done
	Start(ctx context.Context) error

	// IsLoggedIn reports whether a paired device exists
	IsLoggedIn() bool

	// GetGroups gets a list of all joined groups
	GetGroups(ctx context.Context) ([]domain.GroupInfo, error)

	// QRCode returns the pending pairing code, or "" when none
	QRCode() string
}
