package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

// AssistantService answers questions with the LLM, both for the ask endpoint
// and as an automatic responder for messages from the configured numbers.
type AssistantService struct {
	llm       ports.LLMPort
	messenger ports.MessengerPort
	webSearch ports.WebSearchPort
	recorder  *MessagingService
	metrics   *observability.Metrics
	logger    logger.Logger

	autoReply config.AutoReplyConfig
	search    config.WebSearchConfig
	allowed   map[string]struct{}

	mu        sync.Mutex
	chatLocks map[string]*sync.Mutex
	history   map[string][]domain.ChatTurn
}

// NewAssistantService creates a new AssistantService. webSearch and recorder may be nil.
func NewAssistantService(llm ports.LLMPort, messenger ports.MessengerPort, webSearch ports.WebSearchPort, recorder *MessagingService, cfg *config.Config, metrics *observability.Metrics, logger logger.Logger) *AssistantService {
	allowed := make(map[string]struct{}, len(cfg.AutoReply.Numbers))
	for _, n := range cfg.AutoReply.Numbers {
		if p := domain.NormalizePhone(n); p != "" {
			allowed[p] = struct{}{}
		}
	}

	return &AssistantService{
		llm:       llm,
		messenger: messenger,
		webSearch: webSearch,
		recorder:  recorder,
		metrics:   metrics,
		logger:    logger,
		autoReply: cfg.AutoReply,
		search:    cfg.WebSearch,
		allowed:   allowed,
		chatLocks: make(map[string]*sync.Mutex),
		history:   make(map[string][]domain.ChatTurn),
	}
}

// Ask sends a single prompt to the model and returns its answer
func (s *AssistantService) Ask(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	turns := []domain.ChatTurn{{Role: domain.RoleUser, Content: s.augmentWithSearch(ctx, query)}}
	reply, err := s.llm.GenerateResponse(ctx, turns)
	if err != nil {
		s.logger.Error("Failed to generate response", "error", err)
		return "", err
	}
	return reply, nil
}

// GetModelInfo returns information about the current LLM model
func (s *AssistantService) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return s.llm.GetModelInfo(ctx)
}

// AutoReplyEnabled reports whether incoming messages may be answered
func (s *AssistantService) AutoReplyEnabled() bool {
	return s.autoReply.Enabled && len(s.allowed) > 0
}

// ShouldHandle reports whether msg qualifies for an automatic reply
func (s *AssistantService) ShouldHandle(msg *domain.Message) bool {
	if !s.AutoReplyEnabled() || msg == nil {
		return false
	}
	if msg.FromMe || msg.IsGroup || domain.IsGroupChat(msg.ChatID) {
		return false
	}
	if msg.Type != domain.MessageTypeText || strings.TrimSpace(msg.Body) == "" {
		return false
	}

	for _, candidate := range []string{msg.SenderPhone, domain.PhoneUser(msg.Author), domain.PhoneUser(msg.ChatID)} {
		if candidate == "" {
			continue
		}
		if _, ok := s.allowed[candidate]; ok {
			return true
		}
	}
	return false
}

// HandleIncoming generates and sends a reply to msg when it qualifies.
// Replies within a chat are produced one at a time, in arrival order.
func (s *AssistantService) HandleIncoming(ctx context.Context, msg *domain.Message) error {
	if !s.ShouldHandle(msg) {
		s.metrics.RecordAutoReply("skipped")
		return nil
	}

	lock := s.chatLock(msg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	if s.autoReply.ReplyTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.autoReply.ReplyTimeoutSeconds)*time.Second)
		defer cancel()
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"chat_id": msg.ChatID, "message_id": msg.ID})
	log.Info("Generating auto reply")

	if s.autoReply.ShowTyping {
		if err := s.messenger.SetTyping(ctx, msg.ChatID, true); err != nil {
			log.Debug("Failed to set typing presence", "error", err)
		}
		defer func() {
			if err := s.messenger.SetTyping(context.WithoutCancel(ctx), msg.ChatID, false); err != nil {
				log.Debug("Failed to clear typing presence", "error", err)
			}
		}()
	}

	turns := s.buildTurns(ctx, msg)
	reply, err := s.llm.GenerateResponse(ctx, turns)
	if err != nil {
		s.metrics.RecordAutoReply("error")
		return fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		log.Warn("Model returned an empty reply")
		s.metrics.RecordAutoReply("skipped")
		return nil
	}

	res, err := s.messenger.SendReply(ctx, msg, reply)
	if err != nil {
		s.metrics.RecordAutoReply("error")
		return fmt.Errorf("send reply: %w", err)
	}

	s.remember(msg.ChatID, msg.Body, reply)
	if s.recorder != nil {
		s.recorder.RecordSent(ctx, reply, res, "auto_reply")
	}
	s.metrics.RecordAutoReply("sent")
	log.Info("Auto reply sent", "reply_id", res.MessageID)
	return nil
}

// History returns a copy of the conversation kept for a chat
func (s *AssistantService) History(chatID string) []domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatTurn(nil), s.history[chatID]...)
}

// ResetHistory forgets the conversation kept for a chat
func (s *AssistantService) ResetHistory(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, chatID)
}

func (s *AssistantService) buildTurns(ctx context.Context, msg *domain.Message) []domain.ChatTurn {
	history := s.History(msg.ChatID)

	turns := make([]domain.ChatTurn, 0, len(history)+2)
	if prompt := strings.TrimSpace(s.autoReply.SystemPrompt); prompt != "" {
		turns = append(turns, domain.ChatTurn{Role: domain.RoleSystem, Content: prompt})
	}
	turns = append(turns, history...)
	turns = append(turns, domain.ChatTurn{Role: domain.RoleUser, Content: s.augmentWithSearch(ctx, msg.Body)})
	return turns
}

func (s *AssistantService) remember(chatID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.history[chatID],
		domain.ChatTurn{Role: domain.RoleUser, Content: question},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: answer},
	)
	if limit := s.autoReply.HistoryLimit; limit > 0 && len(turns) > limit {
		turns = append([]domain.ChatTurn(nil), turns[len(turns)-limit:]...)
	}
	s.history[chatID] = turns
}

func (s *AssistantService) chatLock(chatID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chatLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.chatLocks[chatID] = l
	}
	return l
}

// augmentWithSearch folds web results into the prompt when the query looks
// like it needs fresh information. Search failures fall back to the plain query.
func (s *AssistantService) augmentWithSearch(ctx context.Context, query string) string {
	if !s.search.Enabled || s.webSearch == nil || !s.webSearch.DetectSearchIntent(query) {
		return query
	}

	results, err := s.webSearch.Search(ctx, query)
	if err != nil {
		s.logger.Warn("Web search failed", "error", err)
		return query
	}
	if len(results) == 0 {
		return query
	}
	return formatSearchResultsForLLM(query, results, s.search.MaxResults, time.Now())
}

// formatSearchResultsForLLM formats search results into a prompt for the LLM
func formatSearchResultsForLLM(userQuery string, searchResults []ports.SearchResult, maxResults int, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "I need information about: %s\n\n", userQuery)
	fmt.Fprintf(&sb, "The current date and time is: %s\n\n", now.Format("Monday, January 2, 2006 at 15:04 MST"))
	sb.WriteString("Here is the latest information I found from web search:\n\n")

	if maxResults <= 0 || maxResults > 5 {
		maxResults = 5
	}
	for i, result := range searchResults {
		if i == maxResults {
			break
		}
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, result.Title)
		fmt.Fprintf(&sb, "Link: %s\n", result.Link)
		fmt.Fprintf(&sb, "Snippet: %s\n\n", result.Snippet)
	}

	sb.WriteString("Based on the above information, give a short, accurate answer suitable for a chat message. ")
	sb.WriteString("If the results don't answer the question, say so and answer from what you know.")
	return sb.String()
}
