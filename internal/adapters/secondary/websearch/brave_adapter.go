package websearch

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/logger"
)

const (
	braveSearchBaseURL = "https://api.search.brave.com/res/v1/web/search"

	// maxBraveResponseBytes bounds the response body read into memory
	maxBraveResponseBytes = 4 << 20
)

// BraveSearchResponse represents the part of the Brave Search API response we use
type BraveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// BraveAdapter implements the WebSearchPort interface using the Brave Search API
type BraveAdapter struct {
	config     *config.WebSearchConfig
	logger     logger.Logger
	baseURL    string
	httpClient *http.Client
}

// NewBraveAdapter creates a new BraveAdapter
func NewBraveAdapter(config *config.WebSearchConfig, log logger.Logger) *BraveAdapter {
	return &BraveAdapter{
		config:  config,
		logger:  log,
		baseURL: braveSearchBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search performs a web search with the given query and returns results
func (a *BraveAdapter) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	if a.config.BraveAPIKey == "" {
		return nil, fmt.Errorf("brave api key is not configured")
	}

	searchURL, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("brave: parse url: %w", err)
	}

	count := a.config.MaxResults
	if count <= 0 {
		count = 10
	}
	q := searchURL.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("country", "US")
	q.Set("search_lang", "en")
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Subscription-Token", a.config.BraveAPIKey)

	a.logger.Debug("Performing Brave web search", "query", query)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("Brave Search request failed", "error", err)
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		a.logger.Error("Brave Search returned non-OK status", "status", resp.StatusCode, "body", string(errorBody))
		return nil, fmt.Errorf("brave: unexpected status %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("brave: gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var braveResp BraveSearchResponse
	if err := json.NewDecoder(io.LimitReader(reader, maxBraveResponseBytes)).Decode(&braveResp); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	var results []ports.SearchResult
	for _, result := range braveResp.Web.Results {
		if a.config.MaxResults > 0 && len(results) == a.config.MaxResults {
			break
		}
		displayedLink := result.URL
		if parsedURL, err := url.Parse(result.URL); err == nil && parsedURL.Host != "" {
			displayedLink = parsedURL.Host
		}
		results = append(results, ports.SearchResult{
			Title:         result.Title,
			Link:          result.URL,
			Snippet:       result.Description,
			DisplayedLink: displayedLink,
			Position:      len(results) + 1,
		})
	}

	a.logger.Info("Brave web search completed", "results_count", len(results))
	return results, nil
}

// DetectSearchIntent reports whether the message contains one of the intent keywords
func (a *BraveAdapter) DetectSearchIntent(message string) bool {
	return detectIntent(a.config.IntentKeywords, message, a.logger)
}
