package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vibin/wa-bridge/internal/core/domain"
	"github.com/vibin/wa-bridge/internal/logger"
)

// MessageDatabase persists chats and messages in SQLite or PostgreSQL.
// It implements ports.MessageRepositoryPort.
type MessageDatabase struct {
	db     *sql.DB
	driver string
	mutex  sync.RWMutex
	logger logger.Logger
}

// NewMessageDatabase opens the database and creates the schema if needed.
// driver is "sqlite3" or "postgres".
func NewMessageDatabase(ctx context.Context, driver, dsn string, log logger.Logger) (*MessageDatabase, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported message store driver %q", driver)
	}

	if driver == "sqlite3" {
		if err := ensureDir(dsn); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	m := &MessageDatabase{db: db, driver: driver, logger: log}
	if err := m.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return m, nil
}

func (m *MessageDatabase) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			is_group BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			ts BIGINT NOT NULL,
			from_me BOOLEAN NOT NULL DEFAULT FALSE,
			author TEXT NOT NULL DEFAULT '',
			push_name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'text',
			PRIMARY KEY (chat_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (m *MessageDatabase) Close() error {
	return m.db.Close()
}

const upsertChat = `
	INSERT INTO chats (id, name, is_group, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE chats.name END,
		is_group = (chats.is_group OR excluded.is_group),
		updated_at = CASE WHEN excluded.updated_at > chats.updated_at THEN excluded.updated_at ELSE chats.updated_at END
`

const upsertMessage = `
	INSERT INTO messages (chat_id, id, body, ts, from_me, author, push_name, type)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (chat_id, id) DO UPDATE SET
		body = excluded.body,
		ts = excluded.ts,
		from_me = excluded.from_me,
		author = excluded.author,
		push_name = excluded.push_name,
		type = excluded.type
`

// SaveChat inserts or merges a chat. An empty name keeps the stored one.
func (m *MessageDatabase) SaveChat(ctx context.Context, chat *domain.Chat) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	isGroup := chat.IsGroup || domain.IsGroupChat(chat.ID)
	_, err := m.db.ExecContext(ctx, m.rebind(upsertChat), chat.ID, chat.Name, isGroup, unixOrZero(chat.UpdatedAt))
	return err
}

// SaveMessage inserts or replaces a message, creating its chat when missing
func (m *MessageDatabase) SaveMessage(ctx context.Context, msg *domain.Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	isGroup := msg.IsGroup || domain.IsGroupChat(msg.ChatID)
	if _, err := tx.ExecContext(ctx, m.rebind(upsertChat), msg.ChatID, "", isGroup, msg.Timestamp); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	msgType := msg.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if _, err := tx.ExecContext(ctx, m.rebind(upsertMessage),
		msg.ChatID, msg.ID, msg.Body, msg.Timestamp, msg.FromMe, msg.Author, msg.PushName, string(msgType),
	); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}

	return tx.Commit()
}

const selectChats = `
	SELECT c.id, c.name, c.is_group, c.updated_at, m.body, m.ts
	FROM chats c
	LEFT JOIN messages m ON m.chat_id = c.id AND m.id = (
		SELECT m2.id FROM messages m2
		WHERE m2.chat_id = c.id
		ORDER BY m2.ts DESC, m2.id DESC
		LIMIT 1
	)
`

// GetChat retrieves a chat by ID
func (m *MessageDatabase) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	row := m.db.QueryRowContext(ctx, m.rebind(selectChats+` WHERE c.id = ?`), id)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChatNotFound, id)
	}
	return chat, err
}

// ListChats returns all chats, most recently active first
func (m *MessageDatabase) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rows, err := m.db.QueryContext(ctx, m.rebind(selectChats+` ORDER BY COALESCE(m.ts, c.updated_at) DESC, c.id ASC`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// ListMessages returns the newest limit messages of a chat, oldest first
func (m *MessageDatabase) ListMessages(ctx context.Context, chatID string, limit int) ([]*domain.Message, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var exists int
	err := m.db.QueryRowContext(ctx, m.rebind(`SELECT 1 FROM chats WHERE id = ?`), chatID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChatNotFound, chatID)
	}
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
		if m.driver == "postgres" {
			// LIMIT ALL
			limit = 1<<31 - 1
		}
	}

	query := `
		SELECT chat_id, id, body, ts, from_me, author, push_name, type FROM (
			SELECT chat_id, id, body, ts, from_me, author, push_name, type
			FROM messages
			WHERE chat_id = ?
			ORDER BY ts DESC, id DESC
			LIMIT ?
		) recent
		ORDER BY ts ASC, id ASC
	`
	rows, err := m.db.QueryContext(ctx, m.rebind(query), chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var msgType string
		if err := rows.Scan(&msg.ChatID, &msg.ID, &msg.Body, &msg.Timestamp, &msg.FromMe, &msg.Author, &msg.PushName, &msgType); err != nil {
			return nil, err
		}
		msg.Type = domain.MessageType(msgType)
		msg.IsGroup = domain.IsGroupChat(msg.ChatID)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*domain.Chat, error) {
	var (
		chat      domain.Chat
		updatedAt int64
		body      sql.NullString
		ts        sql.NullInt64
	)
	if err := row.Scan(&chat.ID, &chat.Name, &chat.IsGroup, &updatedAt, &body, &ts); err != nil {
		return nil, err
	}
	if updatedAt > 0 {
		chat.UpdatedAt = time.Unix(updatedAt, 0)
	}
	if ts.Valid {
		chat.LastMessage = &domain.MessagePreview{Body: body.String, Timestamp: ts.Int64}
	}
	return &chat, nil
}

// rebind rewrites ? placeholders to $1, $2, ... for postgres
func (m *MessageDatabase) rebind(query string) string {
	if m.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// ensureDir creates the parent directory of a sqlite file DSN
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}
