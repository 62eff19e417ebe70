package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/adapters/secondary/repository"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/core/services"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

type fakeWhatsApp struct {
	mu        sync.Mutex
	connected bool
	sendErr   error
	qr        string
	groups    []domain.GroupInfo
	sent      []string
}

func (f *fakeWhatsApp) IsConnected() bool { return f.connected }
func (f *fakeWhatsApp) IsLoggedIn() bool  { return f.connected }
func (f *fakeWhatsApp) QRCode() string    { return f.qr }

func (f *fakeWhatsApp) Connect(ctx context.Context) error { return nil }
func (f *fakeWhatsApp) Disconnect() error                 { return nil }
func (f *fakeWhatsApp) Start(ctx context.Context) error   { return nil }

func (f *fakeWhatsApp) SendText(ctx context.Context, chatID, text string) (*domain.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, chatID)
	return &domain.SendResult{MessageID: "MSG1", ChatID: chatID, Sender: "10000@s.whatsapp.net", Timestamp: 1700000000}, nil
}

func (f *fakeWhatsApp) SendReply(ctx context.Context, original *domain.Message, text string) (*domain.SendResult, error) {
	return f.SendText(ctx, original.ChatID, text)
}

func (f *fakeWhatsApp) SetTyping(ctx context.Context, chatID string, typing bool) error { return nil }

func (f *fakeWhatsApp) GetGroups(ctx context.Context) ([]domain.GroupInfo, error) {
	if !f.connected {
		return nil, domain.ErrNotConnected
	}
	return f.groups, nil
}

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) GenerateResponse(ctx context.Context, turns []domain.ChatTurn) (string, error) {
	return f.reply, f.err
}

func (f *fakeLLM) GetModelInfo(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"provider": "fake", "model": "test"}, nil
}

type testServer struct {
	handler *Handler
	wa      *fakeWhatsApp
	llm     *fakeLLM
	repo    *repository.InMemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, modify func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	if modify != nil {
		modify(cfg)
	}
	log := logger.Nop()
	metrics := observability.NewMetrics()

	wa := &fakeWhatsApp{connected: true}
	llm := &fakeLLM{reply: "hello from the model"}
	repo := repository.NewInMemoryRepository(log)

	messaging := services.NewMessagingService(wa, repo, metrics, log)
	assistant := services.NewAssistantService(llm, wa, nil, messaging, cfg, metrics, log)

	return &testServer{
		handler: NewHandler(messaging, assistant, wa, cfg, metrics, log),
		wa:      wa,
		llm:     llm,
		repo:    repo,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/send-message", `{"number":"+1 555 123 4567","message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success   bool   `json:"success"`
		MessageID string `json:"messageId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "MSG1", body.MessageID)
	assert.Equal(t, []string{"15551234567@s.whatsapp.net"}, s.wa.sent)

	// the sent message is visible in the chat history
	msgs, err := s.repo.ListMessages(context.Background(), "15551234567@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].FromMe)
}

func TestSendMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*fakeWhatsApp)
		wantStatus int
		wantError  string
	}{
		{"missing message", `{"number":"15551234567"}`, nil, http.StatusBadRequest, "Number and message are required"},
		{"missing number", `{"message":"hi"}`, nil, http.StatusBadRequest, "Number and message are required"},
		{"bad json", `{`, nil, http.StatusBadRequest, "Number and message are required"},
		{"bad number", `{"number":"abc","message":"hi"}`, nil, http.StatusBadRequest, "Number and message are required"},
		{"not connected", `{"number":"15551234567","message":"hi"}`, func(f *fakeWhatsApp) { f.connected = false }, http.StatusServiceUnavailable, "WhatsApp is not connected"},
		{"send failure", `{"number":"15551234567","message":"hi"}`, func(f *fakeWhatsApp) { f.sendErr = errors.New("socket closed") }, http.StatusInternalServerError, "Failed to send message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.setup != nil {
				tt.setup(s.wa)
			}
			rec := s.do(t, http.MethodPost, "/send-message", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rec))
		})
	}
}

func TestListChats(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	rec := s.do(t, http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, s.repo.SaveChat(ctx, &domain.Chat{ID: "120363@g.us", Name: "Family", IsGroup: true}))
	require.NoError(t, s.repo.SaveMessage(ctx, &domain.Message{ID: "A", ChatID: "15551234567@s.whatsapp.net", Body: "latest", Timestamp: 200}))

	rec = s.do(t, http.MethodGet, "/chats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var chats []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chats))
	require.Len(t, chats, 2)

	assert.Equal(t, "15551234567@s.whatsapp.net", chats[0]["id"])
	assert.Equal(t, false, chats[0]["isGroup"])
	assert.Equal(t, map[string]interface{}{"body": "latest", "timestamp": float64(200)}, chats[0]["lastMessage"])

	assert.Equal(t, "Family", chats[1]["name"])
	assert.Equal(t, true, chats[1]["isGroup"])
	assert.Nil(t, chats[1]["lastMessage"])
}

func TestListMessages(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	chatID := "15551234567@s.whatsapp.net"
	for i, body := range []string{"one", "two", "three"} {
		require.NoError(t, s.repo.SaveMessage(ctx, &domain.Message{
			ID: body, ChatID: chatID, Body: body, Timestamp: int64(100 + i), Author: chatID,
		}))
	}

	rec := s.do(t, http.MethodGet, "/messages/"+chatID+"?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":"two","body":"two","timestamp":101,"fromMe":false,"author":"15551234567@s.whatsapp.net"},
		{"id":"three","body":"three","timestamp":102,"fromMe":false,"author":"15551234567@s.whatsapp.net"}
	]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/messages/"+chatID+"?limit=junk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)
}

func TestListMessagesUnknownChat(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/messages/19998887777@s.whatsapp.net", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Chat not found", decodeError(t, rec))
}

func TestAskQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/ask-query", `{"query":"hi?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"hello from the model"}`, rec.Body.String())

	s.llm.err = errors.New("model offline")
	rec = s.do(t, http.MethodPost, "/ask-query", `{"query":"hi?"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error interacting with the model", decodeError(t, rec))

	rec = s.do(t, http.MethodPost, "/ask-query", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhatsAppStatus(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/whatsapp/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":true,"logged_in":true,"auto_reply":false}`, rec.Body.String())
}

func TestWhatsAppQR(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/whatsapp/qr", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.wa.qr = "2@pairing-code"
	rec = s.do(t, http.MethodGet, "/api/whatsapp/qr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestWhatsAppGroups(t *testing.T) {
	s := newTestServer(t)
	s.wa.groups = []domain.GroupInfo{{ID: "120363@g.us", Name: "Family", MemberCount: 4}}

	rec := s.do(t, http.MethodGet, "/api/whatsapp/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"120363@g.us","name":"Family","member_count":4}]`, rec.Body.String())

	s.wa.connected = false
	rec = s.do(t, http.MethodGet, "/api/whatsapp/groups", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestModelHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/model", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"fake","model":"test"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wabridge_http_request_duration_seconds")
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServerWith(t, func(cfg *config.Config) {
		cfg.AutoReply.Enabled = true
		cfg.AutoReply.Numbers = []string{"15551234567"}
	})
	chatID := "15551234567@s.whatsapp.net"

	rec := s.do(t, http.MethodGet, "/api/history/"+chatID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, s.handler.assistant.HandleIncoming(context.Background(), &domain.Message{
		ID: "IN1", ChatID: chatID, Author: chatID, SenderPhone: "15551234567",
		Body: "hi", Timestamp: 1700000000, Type: domain.MessageTypeText,
	}))

	rec = s.do(t, http.MethodGet, "/api/history/15551234567", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello from the model"}]`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/history/"+chatID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/history/"+chatID, "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/history/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
