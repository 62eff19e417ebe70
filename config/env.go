package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables
func (c *Config) ApplyEnv() {
	if v, ok := envInt("PORT"); ok {
		c.Server.Port = v
	}

	if v := os.Getenv("AUTO_REPLY_NUMBER"); v != "" {
		c.AutoReply.Numbers = splitList(v)
		c.AutoReply.Enabled = len(c.AutoReply.Numbers) > 0
	}
	if v, ok := envBool("AUTO_REPLY_ENABLED"); ok {
		c.AutoReply.Enabled = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		// applies to whichever backend is selected
		c.LLM.Ollama.Model = v
		c.LLM.OpenAI.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.LLM.Ollama.Endpoint = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("SIDECAR_URL"); v != "" {
		c.LLM.Sidecar.Endpoint = v
	}

	if v := os.Getenv("SERPAPI_KEY"); v != "" {
		c.WebSearch.SerpAPIKey = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		c.WebSearch.BraveAPIKey = v
	}

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("WHATSAPP_STORE_DRIVER"); v != "" {
		c.WhatsApp.StoreDriver = v
	}
	if v := os.Getenv("WHATSAPP_STORE_DSN"); v != "" {
		c.WhatsApp.StoreDSN = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
