package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
)

// maxSidecarResponse caps how much of a sidecar reply is read
const maxSidecarResponse = 1 << 20

// SidecarAdapter asks a companion chat service over plain HTTP:
// GET {endpoint}/chat?q=<question> answers with the reply as text.
// The service keeps its own context, so only the latest user turn is sent.
type SidecarAdapter struct {
	httpClient *http.Client
	endpoint   string
	logger     logger.Logger
}

// NewSidecarAdapter creates a new SidecarAdapter
func NewSidecarAdapter(config *config.LLMConfig, log logger.Logger) (*SidecarAdapter, error) {
	endpoint := strings.TrimRight(config.Sidecar.Endpoint, "/")
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("sidecar: invalid endpoint %q: %w", config.Sidecar.Endpoint, err)
	}
	log.Info("Initializing sidecar adapter", "endpoint", endpoint)

	timeout := time.Duration(config.Sidecar.TimeoutSeconds) * time.Second
	return &SidecarAdapter{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		logger:     log,
	}, nil
}

// GenerateResponse sends the latest user turn to the sidecar
func (a *SidecarAdapter) GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error) {
	question := lastUserText(turns)
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: no user message to send", domain.ErrInvalidInput)
	}

	reqURL := a.endpoint + "/chat?q=" + url.QueryEscape(question)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("sidecar: build request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("Sidecar request failed", "error", err)
		return "", fmt.Errorf("sidecar: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSidecarResponse))
	if err != nil {
		return "", fmt.Errorf("sidecar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sidecar: unexpected status %s", resp.Status)
	}

	return strings.TrimSpace(string(body)), nil
}

// GetModelInfo returns information about the sidecar
func (a *SidecarAdapter) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"name":     "sidecar",
		"provider": "sidecar",
		"endpoint": a.endpoint,
	}, nil
}
