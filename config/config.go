package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	WebSearch WebSearchConfig `json:"websearch" yaml:"websearch"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp" yaml:"whatsapp"`
	AutoReply AutoReplyConfig `json:"auto_reply" yaml:"auto_reply"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  int `json:"port" yaml:"port"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// LLMConfig holds configuration for the LLM backend
type LLMConfig struct {
	Provider        string        `json:"provider" yaml:"provider"` // "ollama", "openai" or "sidecar"
	EnableReasoning bool          `json:"enable_reasoning" yaml:"enable_reasoning"`
	Temperature     float64       `json:"temperature" yaml:"temperature"`
	Ollama          OllamaConfig  `json:"ollama" yaml:"ollama"`
	OpenAI          OpenAIConfig  `json:"openai" yaml:"openai"`
	Sidecar         SidecarConfig `json:"sidecar" yaml:"sidecar"`
}

// OllamaConfig holds specific configuration for Ollama integration
type OllamaConfig struct {
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	Model          string `json:"model" yaml:"model"`
	MaxTokens      int    `json:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	Model          string `json:"model" yaml:"model"`
	MaxTokens      int    `json:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SidecarConfig holds configuration for a plain HTTP chat service answering GET /chat?q=
type SidecarConfig struct {
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// WebSearchConfig holds configuration for web search functionality
type WebSearchConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Provider       string   `json:"provider" yaml:"provider"` // "serpapi" or "brave"
	SerpAPIKey     string   `json:"serpapi_key" yaml:"serpapi_key"`
	BraveAPIKey    string   `json:"brave_api_key" yaml:"brave_api_key"`
	MaxResults     int      `json:"max_results" yaml:"max_results"`
	IntentKeywords []string `json:"intent_keywords" yaml:"intent_keywords"`
}

// WhatsAppConfig holds configuration for the WhatsApp session
type WhatsAppConfig struct {
	StoreDriver       string  `json:"store_driver" yaml:"store_driver"` // "sqlite3" or "postgres"
	StoreDSN          string  `json:"store_dsn" yaml:"store_dsn"`
	PrintQR           bool    `json:"print_qr" yaml:"print_qr"`
	QuoteReplies      bool    `json:"quote_replies" yaml:"quote_replies"`
	SendRatePerSecond float64 `json:"send_rate_per_second" yaml:"send_rate_per_second"`
	SendBurst         int     `json:"send_burst" yaml:"send_burst"`
	HistorySync       bool    `json:"history_sync" yaml:"history_sync"`
}

// AutoReplyConfig controls forwarding of messages from the configured senders to the LLM
type AutoReplyConfig struct {
	Enabled             bool     `json:"enabled" yaml:"enabled"`
	Numbers             []string `json:"numbers" yaml:"numbers"`
	SystemPrompt        string   `json:"system_prompt" yaml:"system_prompt"`
	HistoryLimit        int      `json:"history_limit" yaml:"history_limit"`
	ReplyTimeoutSeconds int      `json:"reply_timeout_seconds" yaml:"reply_timeout_seconds"`
	ShowTyping          bool     `json:"show_typing" yaml:"show_typing"`
}

// StoreConfig holds configuration for the chat/message store
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite3", "postgres" or "memory"
	DSN    string `json:"dsn" yaml:"dsn"`
}

// LoadConfig loads configuration from a JSON or YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                  3000,
			RequestTimeoutSeconds: 120,
		},
		LLM: LLMConfig{
			Provider:        "ollama",
			EnableReasoning: false,
			Temperature:     0.7,
			Ollama: OllamaConfig{
				Endpoint:       "http://localhost:11434",
				Model:          "llama3",
				MaxTokens:      1024,
				TimeoutSeconds: 100,
			},
			OpenAI: OpenAIConfig{
				BaseURL:        "http://localhost:8000/v1",
				Model:          "local-model",
				MaxTokens:      1024,
				TimeoutSeconds: 100,
			},
			Sidecar: SidecarConfig{
				Endpoint:       "http://localhost:5001",
				TimeoutSeconds: 100,
			},
		},
		WebSearch: WebSearchConfig{
			Enabled:        false,
			Provider:       "serpapi",
			MaxResults:     5,
			IntentKeywords: []string{"now", "today", "latest", "current", "news", "weather", "score", "price"},
		},
		WhatsApp: WhatsAppConfig{
			StoreDriver:       "sqlite3",
			StoreDSN:          "file:./data/whatsapp/whatsmeow.db?_foreign_keys=on",
			PrintQR:           true,
			QuoteReplies:      true,
			SendRatePerSecond: 1,
			SendBurst:         10,
			HistorySync:       true,
		},
		AutoReply: AutoReplyConfig{
			Enabled:             false,
			Numbers:             []string{},
			SystemPrompt:        "You are a helpful assistant replying to WhatsApp messages. Keep your answers short and conversational.",
			HistoryLimit:        10,
			ReplyTimeoutSeconds: 120,
			ShowTyping:          true,
		},
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "file:./data/messages.db?_foreign_keys=on",
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}

	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.Ollama.Endpoint == "" || c.LLM.Ollama.Model == "" {
			return fmt.Errorf("llm: ollama endpoint and model are required")
		}
	case "openai":
		if c.LLM.OpenAI.Model == "" {
			return fmt.Errorf("llm: openai model is required")
		}
	case "sidecar":
		if c.LLM.Sidecar.Endpoint == "" {
			return fmt.Errorf("llm: sidecar endpoint is required")
		}
	default:
		return fmt.Errorf("llm: unknown provider %q", c.LLM.Provider)
	}

	switch c.WhatsApp.StoreDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("whatsapp: unsupported store driver %q", c.WhatsApp.StoreDriver)
	}
	if c.WhatsApp.StoreDSN == "" {
		return fmt.Errorf("whatsapp: store_dsn is required")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite3", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store: dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store: unsupported driver %q", c.Store.Driver)
	}

	if c.AutoReply.Enabled && len(c.AutoReply.Numbers) == 0 {
		return fmt.Errorf("auto_reply: at least one number is required when enabled")
	}

	if c.WebSearch.Enabled {
		switch c.WebSearch.Provider {
		case "serpapi":
			if c.WebSearch.SerpAPIKey == "" {
				return fmt.Errorf("websearch: serpapi_key is required when enabled")
			}
		case "brave":
			if c.WebSearch.BraveAPIKey == "" {
				return fmt.Errorf("websearch: brave_api_key is required when enabled")
			}
		default:
			return fmt.Errorf("websearch: unsupported provider %q", c.WebSearch.Provider)
		}
	}

	return nil
}
