package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Ollama.Model)
	assert.Equal(t, 10, cfg.AutoReply.HistoryLimit)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 8080
llm:
  provider: sidecar
  sidecar:
    endpoint: http://sidecar:5001
auto_reply:
  enabled: true
  numbers: ["+31 6 1234 5678"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sidecar", cfg.LLM.Provider)
	assert.Equal(t, "http://sidecar:5001", cfg.LLM.Sidecar.Endpoint)
	assert.True(t, cfg.AutoReply.Enabled)
	assert.Equal(t, []string{"+31 6 1234 5678"}, cfg.AutoReply.Numbers)
	// untouched sections keep their defaults
	assert.Equal(t, "llama3", cfg.LLM.Ollama.Model)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":9000},"store":{"driver":"memory"}}`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "brave-token", cfg.WebSearch.BraveAPIKey)
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.AutoReply.Numbers = []string{"15551234567"}

			require.NoError(t, SaveConfig(cfg, path))
			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.AutoReply.Numbers, loaded.AutoReply.Numbers)
			assert.Equal(t, cfg.Server.Port, loaded.Server.Port)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("AUTO_REPLY_NUMBER", "15551234567, 15557654321")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_MODEL", "qwen3:8b")
	t.Setenv("OPENAI_BASE_URL", "http://llama:8080/v1")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BRAVE_API_KEY", "brave-token")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.True(t, cfg.AutoReply.Enabled)
	assert.Equal(t, []string{"15551234567", "15557654321"}, cfg.AutoReply.Numbers)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "qwen3:8b", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "http://llama:8080/v1", cfg.LLM.OpenAI.BaseURL)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestApplyEnvIgnoresBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WA_BRIDGE_TEST_VAR=hello\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("WA_BRIDGE_TEST_VAR") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "hello", os.Getenv("WA_BRIDGE_TEST_VAR"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gpt" }},
		{"missing sidecar endpoint", func(c *Config) { c.LLM.Provider = "sidecar"; c.LLM.Sidecar.Endpoint = "" }},
		{"auto reply without numbers", func(c *Config) { c.AutoReply.Enabled = true }},
		{"bad store driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"bad device store driver", func(c *Config) { c.WhatsApp.StoreDriver = "memory" }},
		{"websearch without key", func(c *Config) { c.WebSearch.Enabled = true }},
		{"brave without key", func(c *Config) {
			c.WebSearch.Enabled = true
			c.WebSearch.Provider = "brave"
			c.WebSearch.SerpAPIKey = "k"
		}},
		{"unknown search provider", func(c *Config) { c.WebSearch.Enabled = true; c.WebSearch.Provider = "bing" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := LoadConfig("config.example.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"15551234567"}, cfg.AutoReply.Numbers)
	assert.Equal(t, "llama3", cfg.LLM.Ollama.Model)
}

func TestValidateBraveProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WebSearch.Enabled = true
	cfg.WebSearch.Provider = "brave"
	cfg.WebSearch.BraveAPIKey = "token"
	assert.NoError(t, cfg.Validate())
}
