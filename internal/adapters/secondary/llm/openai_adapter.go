package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
)

// OpenAIAdapter talks to any OpenAI-compatible chat completion server, such as
// llama.cpp, vLLM or LocalAI running next to the bridge.
type OpenAIAdapter struct {
	client *openai.Client
	config *config.LLMConfig
	logger logger.Logger
}

// NewOpenAIAdapter creates a new OpenAIAdapter
func NewOpenAIAdapter(config *config.LLMConfig, log logger.Logger) (*OpenAIAdapter, error) {
	if config.OpenAI.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	log.Info("Initializing OpenAI-compatible adapter", "base_url", config.OpenAI.BaseURL, "model", config.OpenAI.Model)

	apiKey := config.OpenAI.APIKey
	if apiKey == "" {
		// local servers ignore the key but the client always sends one
		apiKey = "n/a"
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if config.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = config.OpenAI.BaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: log,
	}, nil
}

// GenerateResponse generates a response from the LLM for a given conversation
func (a *OpenAIAdapter) GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: empty conversation", domain.ErrInvalidInput)
	}

	req := openai.ChatCompletionRequest{
		Model:       a.config.OpenAI.Model,
		Messages:    toOpenAIMessages(turns),
		Temperature: float32(a.config.Temperature),
	}
	if a.config.OpenAI.MaxTokens > 0 {
		req.MaxTokens = a.config.OpenAI.MaxTokens
	}

	if a.config.OpenAI.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.config.OpenAI.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("Chat completion failed", "error", err)
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}

	return cleanThinkingTags(resp.Choices[0].Message.Content, a.config.EnableReasoning), nil
}

// GetModelInfo returns information about the current LLM model
func (a *OpenAIAdapter) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"name":      a.config.OpenAI.Model,
		"provider":  "openai",
		"endpoint":  a.config.OpenAI.BaseURL,
		"maxTokens": a.config.OpenAI.MaxTokens,
	}, nil
}

func toOpenAIMessages(turns []domain.ChatTurn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		switch turn.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	return out
}
