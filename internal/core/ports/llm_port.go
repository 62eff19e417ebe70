package ports

import (
	"context"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

// LLMPort defines the interface for interacting with the LLM backend
type LLMPort interface {
	// GenerateResponse generates a reply for the given conversation.
	// The last turn is the one being answered.
	GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error)

	// GetModelInfo returns information about the current LLM model
	GetModelInfo(ctx context.Context) (map[string]interface{}, error)
}
