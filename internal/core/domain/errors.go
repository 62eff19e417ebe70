package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request is missing required fields
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRecipient is returned when a number cannot be turned into a chat ID
	ErrInvalidRecipient = errors.New("invalid recipient")

	ErrChatNotFound = errors.New("chat not found")

	// ErrNotConnected is returned when the WhatsApp client has no live session
	ErrNotConnected = errors.New("whatsapp client not connected")
)
