package websearch

import (
	"context"
	"fmt"

	serpapi "github.com/serpapi/google-search-results-golang"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/logger"
)

// SerpAPIAdapter implements the WebSearchPort interface using SerpAPI
type SerpAPIAdapter struct {
	config *config.WebSearchConfig
	logger logger.Logger

	// fetch runs the query against SerpAPI and returns the decoded JSON
	fetch func(params map[string]string, apiKey string) (map[string]interface{}, error)
}

// NewSerpAPIAdapter creates a new SerpAPIAdapter
func NewSerpAPIAdapter(config *config.WebSearchConfig, log logger.Logger) *SerpAPIAdapter {
	return &SerpAPIAdapter{
		config: config,
		logger: log,
		fetch: func(params map[string]string, apiKey string) (map[string]interface{}, error) {
			search := serpapi.NewGoogleSearch(params, apiKey)
			return search.GetJSON()
		},
	}
}

// Search performs a web search with the given query and returns results
func (a *SerpAPIAdapter) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	if a.config.SerpAPIKey == "" {
		return nil, fmt.Errorf("serpapi key is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"q":             query,
		"engine":        "google",
		"google_domain": "google.com",
		"gl":            "us",
		"hl":            "en",
	}

	a.logger.Debug("Performing web search", "query", query)
	data, err := a.fetch(params, a.config.SerpAPIKey)
	if err != nil {
		a.logger.Error("SerpAPI search failed", "error", err)
		return nil, fmt.Errorf("serpapi: %w", err)
	}

	results := parseOrganicResults(data, a.config.MaxResults)
	a.logger.Info("Web search completed", "results_count", len(results))
	return results, nil
}

// DetectSearchIntent reports whether the message contains one of the intent keywords
func (a *SerpAPIAdapter) DetectSearchIntent(message string) bool {
	return detectIntent(a.config.IntentKeywords, message, a.logger)
}

func parseOrganicResults(data map[string]interface{}, limit int) []ports.SearchResult {
	organic, ok := data["organic_results"].([]interface{})
	if !ok {
		return nil
	}

	var results []ports.SearchResult
	for _, raw := range organic {
		if limit > 0 && len(results) == limit {
			break
		}
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		results = append(results, ports.SearchResult{
			Title:         getStringValue(m, "title"),
			Link:          getStringValue(m, "link"),
			Snippet:       getStringValue(m, "snippet"),
			DisplayedLink: getStringValue(m, "displayed_link"),
			Position:      len(results) + 1,
		})
	}
	return results
}

// getStringValue safely extracts a string value from a map
func getStringValue(data map[string]interface{}, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}
