package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/ports"
	"github.com/vibin/wa-bridge/internal/core/services"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

// Handler is the HTTP handler for the bridge
type Handler struct {
	messaging       *services.MessagingService
	assistant       *services.AssistantService
	whatsappAdapter ports.WhatsAppPort
	metrics         *observability.Metrics
	logger          logger.Logger
	router          *chi.Mux
	config          *config.Config
}

// NewHandler creates a new HTTP handler
func NewHandler(messaging *services.MessagingService, assistant *services.AssistantService, whatsappAdapter ports.WhatsAppPort, cfg *config.Config, metrics *observability.Metrics, log logger.Logger) *Handler {
	h := &Handler{
		messaging:       messaging,
		assistant:       assistant,
		whatsappAdapter: whatsappAdapter,
		metrics:         metrics,
		logger:          log,
		config:          cfg,
	}

	h.setupRouter()
	return h
}

// setupRouter sets up the Chi router with middleware and routes
func (h *Handler) setupRouter() {
	r := chi.NewRouter()

	timeout := time.Duration(h.config.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(h.logger, h.metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/send-message", h.SendMessage)
	r.Get("/chats", h.ListChats)
	r.Get("/messages/{chatId}", h.ListMessages)
	r.Post("/ask-query", h.AskQuery)

	r.Route("/api", func(r chi.Router) {
		r.Get("/model", h.GetModelInfo)
		r.Get("/history/{chatId}", h.GetHistory)
		r.Delete("/history/{chatId}", h.ResetHistory)
		h.setupWhatsAppRoutes(r)
	})

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.metrics.Handler())

	h.router = r
}

// ServeHTTP implements the http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// SendMessage handles the send message request
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number  string `json:"number"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Number and message are required")
		return
	}

	res, err := h.messaging.SendMessage(r.Context(), req.Number, req.Message)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRecipient):
		h.respondWithError(w, http.StatusBadRequest, "Number and message are required")
		return
	case errors.Is(err, domain.ErrNotConnected):
		h.respondWithError(w, http.StatusServiceUnavailable, "WhatsApp is not connected")
		return
	default:
		h.logger.Error("Failed to send message", "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"messageId": res.MessageID,
	})
}

// ListChats handles the list chats request
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.messaging.ListChats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get chats", "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get chats")
		return
	}
	if chats == nil {
		chats = []*domain.Chat{}
	}

	h.respondWithJSON(w, http.StatusOK, chats)
}

// ListMessages handles the list messages request. An absent or unparsable
// limit falls back to the service default.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	messages, err := h.messaging.ListMessages(r.Context(), chatID, limit)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrChatNotFound):
		h.respondWithError(w, http.StatusNotFound, "Chat not found")
		return
	default:
		h.logger.Error("Failed to get messages", "chat_id", chatID, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get messages")
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}

	h.respondWithJSON(w, http.StatusOK, messages)
}

// AskQuery sends a single prompt to the model and returns its reply
func (h *Handler) AskQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	reply, err := h.assistant.Ask(r.Context(), req.Query)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput):
		h.respondWithError(w, http.StatusBadRequest, "Query is required")
		return
	default:
		h.logger.Error("Error interacting with the model", "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Error interacting with the model")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// GetModelInfo handles the get model info request
func (h *Handler) GetModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.assistant.GetModelInfo(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get model info")
		return
	}

	h.respondWithJSON(w, http.StatusOK, info)
}

// GetHistory returns the auto reply conversation kept for a chat
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := domain.NormalizeChatID(chi.URLParam(r, "chatId"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}

	turns := h.assistant.History(chatID)
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	h.respondWithJSON(w, http.StatusOK, turns)
}

// ResetHistory forgets the auto reply conversation kept for a chat, so the
// next reply starts fresh
func (h *Handler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := domain.NormalizeChatID(chi.URLParam(r, "chatId"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}

	h.assistant.ResetHistory(chatID)
	w.WriteHeader(http.StatusNoContent)
}

// Health reports that the process is serving
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondWithError sends an error response
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
