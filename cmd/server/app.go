package main

import (
	"context"
	"fmt"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/adapters/primary/whatsapp"
	"github.com/vibin/wa-bridge/internal/adapters/secondary/database"
	"github.com/vibin/wa-bridge/internal/adapters/secondary/llm"
	"github.com/vibin/wa-bridge/internal/adapters/secondary/repository"
	"github.com/vibin/wa-bridge/internal/adapters/secondary/websearch"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/core/services"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

// app holds the wired components of a running bridge
type app struct {
	metrics   *observability.Metrics
	store     ports.MessageRepositoryPort
	whatsapp  *whatsapp.WhatsAppAdapter
	messaging *services.MessagingService
	assistant *services.AssistantService
}

func buildApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	metrics := observability.NewMetrics()

	store, err := newStore(ctx, &cfg.Store, log)
	if err != nil {
		return nil, err
	}

	llmAdapter, err := llm.New(&cfg.LLM, metrics, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initialize LLM adapter: %w", err)
	}

	var webSearch ports.WebSearchPort
	if cfg.WebSearch.Enabled {
		webSearch = newWebSearch(&cfg.WebSearch, log)
	}

	wa := whatsapp.NewWhatsAppAdapter(cfg, metrics, log)
	messaging := services.NewMessagingService(wa, store, metrics, log.WithField("component", "messaging"))
	assistant := services.NewAssistantService(llmAdapter, wa, webSearch, messaging, cfg, metrics, log.WithField("component", "assistant"))

	wa.SetMessageSink(messaging)
	if assistant.AutoReplyEnabled() {
		log.Info("Auto reply enabled", "numbers", len(cfg.AutoReply.Numbers))
		wa.SetAutoResponder(assistant)
	}

	return &app{
		metrics:   metrics,
		store:     store,
		whatsapp:  wa,
		messaging: messaging,
		assistant: assistant,
	}, nil
}

// Close releases the WhatsApp session and the message store
func (a *app) Close() {
	a.whatsapp.Close()
	a.store.Close()
}

func newStore(ctx context.Context, cfg *config.StoreConfig, log logger.Logger) (ports.MessageRepositoryPort, error) {
	if cfg.Driver == "memory" {
		log.Info("Using in-memory message store")
		return repository.NewInMemoryRepository(log), nil
	}

	db, err := database.NewMessageDatabase(ctx, cfg.Driver, cfg.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}
	return db, nil
}

func newWebSearch(cfg *config.WebSearchConfig, log logger.Logger) ports.WebSearchPort {
	log.Info("Initializing web search adapter", "provider", cfg.Provider)
	switch cfg.Provider {
	case "brave":
		return websearch.NewBraveAdapter(cfg, log)
	default:
		return websearch.NewSerpAPIAdapter(cfg, log)
	}
}
