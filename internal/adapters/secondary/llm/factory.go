package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

// New builds the adapter selected by cfg.Provider, instrumented with metrics
func New(cfg *config.LLMConfig, metrics *observability.Metrics, log logger.Logger) (ports.LLMPort, error) {
	log = log.WithField("component", "llm")

	var (
		adapter ports.LLMPort
		model   string
		err     error
	)
	switch cfg.Provider {
	case "ollama", "":
		adapter, err = NewOllamaAdapter(cfg, log)
		model = cfg.Ollama.Model
	case "openai":
		adapter, err = NewOpenAIAdapter(cfg, log)
		model = cfg.OpenAI.Model
	case "sidecar":
		adapter, err = NewSidecarAdapter(cfg, log)
		model = "sidecar"
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "ollama"
	}
	return &instrumented{next: adapter, provider: provider, model: model, metrics: metrics}, nil
}

// instrumented records latency and outcome of every call
type instrumented struct {
	next     ports.LLMPort
	provider string
	model    string
	metrics  *observability.Metrics
}

func (i *instrumented) GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error) {
	start := time.Now()
	reply, err := i.next.GenerateResponse(ctx, turns)

	status := "success"
	if err != nil {
		status = "error"
	}
	i.metrics.RecordLLMRequest(i.provider, i.model, status, time.Since(start).Seconds())
	return reply, err
}

func (i *instrumented) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return i.next.GetModelInfo(ctx)
}
