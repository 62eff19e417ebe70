package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
)

// OllamaAdapter implements the LLMPort interface for the Ollama LLM provider
type OllamaAdapter struct {
	client *ollama.LLM
	config *config.LLMConfig
	logger logger.Logger
}

// NewOllamaAdapter creates a new OllamaAdapter
func NewOllamaAdapter(config *config.LLMConfig, log logger.Logger) (*OllamaAdapter, error) {
	log.Info("Initializing Ollama adapter", "endpoint", config.Ollama.Endpoint, "model", config.Ollama.Model)

	client, err := ollama.New(
		ollama.WithServerURL(config.Ollama.Endpoint),
		ollama.WithModel(config.Ollama.Model),
	)
	if err != nil {
		log.Error("Failed to initialize Ollama client", "error", err)
		return nil, err
	}

	return &OllamaAdapter{
		client: client,
		config: config,
		logger: log,
	}, nil
}

var (
	emptyThinkRe = regexp.MustCompile(`<think>\s*</think>`)
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// cleanThinkingTags removes reasoning blocks emitted by thinking models.
// With keepReasoning only empty blocks are dropped.
func cleanThinkingTags(input string, keepReasoning bool) string {
	cleaned := emptyThinkRe.ReplaceAllString(input, "")
	if !keepReasoning {
		cleaned = thinkBlockRe.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// GenerateResponse generates a response from the LLM for a given conversation
func (a *OllamaAdapter) GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error) {
	model := a.config.Ollama.Model
	a.logger.Debug("Generating response with Ollama", "model", model, "turns", len(turns))

	if len(turns) == 0 {
		return "", fmt.Errorf("%w: empty conversation", domain.ErrInvalidInput)
	}

	messages := toOllamaMessages(turns, model, a.config.EnableReasoning)

	opts := []llms.CallOption{
		llms.WithTemperature(a.config.Temperature),
	}
	if a.config.Ollama.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.config.Ollama.MaxTokens))
	}

	if a.config.Ollama.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.config.Ollama.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	resp, err := a.client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		a.logger.Error("Ollama generation failed", "error", err)
		return "", fmt.Errorf("ollama: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama: empty response")
	}

	return cleanThinkingTags(resp.Choices[0].Content, a.config.EnableReasoning), nil
}

// GetModelInfo returns information about the current LLM model
func (a *OllamaAdapter) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"name":            a.config.Ollama.Model,
		"provider":        "ollama",
		"endpoint":        a.config.Ollama.Endpoint,
		"maxTokens":       a.config.Ollama.MaxTokens,
		"enableReasoning": a.config.EnableReasoning,
	}, nil
}

// toOllamaMessages maps chat turns to langchaingo message content.
// qwen3 models get "/no_think" on the final user turn unless reasoning is enabled.
func toOllamaMessages(turns []domain.ChatTurn, model string, enableReasoning bool) []llms.MessageContent {
	noThink := strings.HasPrefix(model, "qwen3") && !enableReasoning

	out := make([]llms.MessageContent, 0, len(turns))
	for i, turn := range turns {
		content := turn.Content
		if noThink && turn.Role == domain.RoleUser && i == len(turns)-1 {
			content += " /no_think"
		}
		out = append(out, llms.TextParts(messageType(turn.Role), content))
	}
	return out
}

func messageType(role domain.Role) llms.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// lastUserText returns the content of the most recent user turn
func lastUserText(turns []domain.ChatTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
