package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/time/rate"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vibin/wa-bridge/config"
	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
	"github.com/vibin/wa-bridge/internal/observability"
)

const (
	// dedupeTTL is how long a seen message ID is remembered
	dedupeTTL = 10 * time.Minute

	// nameRetryAfter is how long a failed chat name lookup is remembered
	nameRetryAfter = 5 * time.Minute
)

// MessageSink stores chats and messages seen on the socket
type MessageSink interface {
	RecordMessage(ctx context.Context, msg *domain.Message, chatName string) error
	RecordChat(ctx context.Context, chat *domain.Chat) error
}

// AutoResponder decides on and produces automatic replies
type AutoResponder interface {
	ShouldHandle(msg *domain.Message) bool
	HandleIncoming(ctx context.Context, msg *domain.Message) error
}

// WhatsAppAdapter implements ports.WhatsAppPort on top of whatsmeow
type WhatsAppAdapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	config    *config.WhatsAppConfig
	log       logger.Logger
	metrics   *observability.Metrics
	limiter   *rate.Limiter
	formatter *WhatsAppFormatter

	sink      MessageSink
	responder AutoResponder

	// baseCtx scopes background work started from event handlers
	baseCtx context.Context

	processedMsgs sync.Map // message ID -> time first seen
	chatNames     sync.Map // chat JID -> resolved display name
	nameMisses    sync.Map // chat JID -> time of the last failed lookup

	resolveName func(ctx context.Context, jid types.JID) string

	qrMutex sync.RWMutex
	qrCode  string

	loginOnce sync.Once
	loggedIn  chan struct{}
	failOnce  sync.Once
	pairFail  chan error

	wg sync.WaitGroup
}

// NewWhatsAppAdapter creates a new WhatsApp adapter. No connection is made
// until Connect or Start is called.
func NewWhatsAppAdapter(cfg *config.Config, metrics *observability.Metrics, log logger.Logger) *WhatsAppAdapter {
	ratePerSecond := cfg.WhatsApp.SendRatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	burst := cfg.WhatsApp.SendBurst
	if burst <= 0 {
		burst = 10
	}

	a := &WhatsAppAdapter{
		config:    &cfg.WhatsApp,
		log:       log.WithField("component", "whatsapp"),
		metrics:   metrics,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		formatter: NewWhatsAppFormatter(),
		baseCtx:   context.Background(),
		loggedIn:  make(chan struct{}),
		pairFail:  make(chan error, 1),
	}
	a.resolveName = a.lookupName
	return a
}

// SetMessageSink sets where received messages are stored
func (a *WhatsAppAdapter) SetMessageSink(sink MessageSink) {
	a.sink = sink
}

// SetAutoResponder sets the component answering qualifying messages
func (a *WhatsAppAdapter) SetAutoResponder(responder AutoResponder) {
	a.responder = responder
}

// Connect opens the device store and connects to WhatsApp. When no device is
// paired yet a QR code is published, see QRCode and WaitForLogin.
func (a *WhatsAppAdapter) Connect(ctx context.Context) error {
	if a.client == nil {
		if err := a.initClient(ctx); err != nil {
			return err
		}
	}
	if a.client.IsConnected() {
		return nil
	}

	if a.client.Store.ID == nil {
		qrChan, err := a.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("error getting QR channel: %w", err)
		}
		if err := a.client.Connect(); err != nil {
			return fmt.Errorf("error connecting to WhatsApp: %w", err)
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.consumeQR(qrChan)
		}()
		return nil
	}

	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("error connecting to WhatsApp: %w", err)
	}
	a.log.Info("Connecting with stored session", "jid", a.client.Store.ID.String())
	return nil
}

func (a *WhatsAppAdapter) initClient(ctx context.Context) error {
	if a.config.StoreDriver == "sqlite3" {
		if err := ensureSQLiteDir(a.config.StoreDSN); err != nil {
			return fmt.Errorf("failed to create WhatsApp store directory: %w", err)
		}
	}

	container, err := sqlstore.New(ctx, a.config.StoreDriver, a.config.StoreDSN, logger.ForWhatsmeow(a.log, "Database"))
	if err != nil {
		return fmt.Errorf("failed to initialize WhatsApp database: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return fmt.Errorf("failed to get device store: %w", err)
	}

	a.container = container
	a.client = whatsmeow.NewClient(device, logger.ForWhatsmeow(a.log, "Client"))
	a.client.AddEventHandler(a.eventHandler)
	return nil
}

func (a *WhatsAppAdapter) consumeQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			a.setQRCode(evt.Code)
			if a.config.PrintQR {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
			a.log.Info("Scan the QR code with your WhatsApp app", "expires_in", evt.Timeout.String())
		case "success":
			a.setQRCode("")
			a.log.Info("QR pairing succeeded")
		default:
			a.setQRCode("")
			err := fmt.Errorf("pairing failed: %s", evt.Event)
			if evt.Error != nil {
				err = fmt.Errorf("pairing failed: %s: %w", evt.Event, evt.Error)
			}
			a.log.Warn("QR channel closed without pairing", "event", evt.Event, "error", evt.Error)
			a.failOnce.Do(func() { a.pairFail <- err })
		}
	}
}

// WaitForLogin blocks until the session is connected and logged in, pairing
// fails, or ctx is done.
func (a *WhatsAppAdapter) WaitForLogin(ctx context.Context) error {
	select {
	case <-a.loggedIn:
		return nil
	case err := <-a.pairFail:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection to WhatsApp
func (a *WhatsAppAdapter) Disconnect() error {
	if a.client != nil {
		a.client.Disconnect()
	}
	a.metrics.SetConnected(false)
	return nil
}

// Close disconnects and releases the device store
func (a *WhatsAppAdapter) Close() error {
	a.Disconnect()
	a.wg.Wait()
	if a.container != nil {
		return a.container.Close()
	}
	return nil
}

// IsConnected checks if the client has a live, logged in session
func (a *WhatsAppAdapter) IsConnected() bool {
	return a.client != nil && a.client.IsConnected() && a.client.IsLoggedIn()
}

// IsLoggedIn reports whether a paired device exists
func (a *WhatsAppAdapter) IsLoggedIn() bool {
	return a.client != nil && a.client.Store.ID != nil
}

// QRCode returns the pending pairing code, or "" when none
func (a *WhatsAppAdapter) QRCode() string {
	a.qrMutex.RLock()
	defer a.qrMutex.RUnlock()
	return a.qrCode
}

func (a *WhatsAppAdapter) setQRCode(code string) {
	a.qrMutex.Lock()
	a.qrCode = code
	a.qrMutex.Unlock()
}

// Start connects and keeps the adapter running until ctx is done
func (a *WhatsAppAdapter) Start(ctx context.Context) error {
	a.log.Info("WhatsApp adapter is starting")
	a.baseCtx = ctx

	if !a.IsConnected() {
		if err := a.Connect(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			a.pruneProcessed(now)
		case <-ctx.Done():
			a.log.Info("WhatsApp adapter stopping")
			a.Disconnect()
			a.wg.Wait()
			return nil
		}
	}
}

// eventHandler handles WhatsApp events
func (a *WhatsAppAdapter) eventHandler(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		a.handleMessage(evt)
	case *events.HistorySync:
		if !a.config.HistorySync {
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleHistorySync(evt)
		}()
	case *events.Connected:
		a.log.Info("WhatsApp connected")
		a.metrics.SetConnected(true)
		a.setQRCode("")
		a.loginOnce.Do(func() { close(a.loggedIn) })
	case *events.Disconnected:
		a.log.Warn("WhatsApp disconnected")
		a.metrics.SetConnected(false)
	case *events.PairSuccess:
		a.log.Info("Paired new device", "jid", evt.ID.String(), "platform", evt.Platform)
	case *events.StreamReplaced:
		a.log.Warn("WhatsApp session was opened elsewhere")
		a.metrics.SetConnected(false)
	case *events.LoggedOut:
		a.log.Warn("WhatsApp logged out, pairing is required again", "reason", evt.Reason)
		a.metrics.SetConnected(false)
		if a.client != nil && a.client.Store != nil {
			if err := a.client.Store.Delete(a.baseCtx); err != nil {
				a.log.Error("Failed to delete device store on logout", "error", err)
			}
		}
	}
}

// markProcessed records id and reports whether it had been seen before
func (a *WhatsAppAdapter) markProcessed(id string, now time.Time) bool {
	if id == "" {
		return false
	}
	_, seen := a.processedMsgs.LoadOrStore(id, now)
	return seen
}

func (a *WhatsAppAdapter) pruneProcessed(now time.Time) {
	a.processedMsgs.Range(func(key, value any) bool {
		if seenAt, ok := value.(time.Time); ok && now.Sub(seenAt) > dedupeTTL {
			a.processedMsgs.Delete(key)
		}
		return true
	})
}

// ensureSQLiteDir creates the parent directory of a sqlite file DSN
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}
