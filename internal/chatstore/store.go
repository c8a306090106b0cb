// Package chatstore persists conversations in SQLite. The message log is
// append-only: messages are inserted and read, never updated or deleted.
package chatstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/orchestrator"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	actor_type TEXT NOT NULL DEFAULT 'user',
	model TEXT DEFAULT '',
	total_tokens INTEGER NOT NULL DEFAULT 0,
	tool_calls TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (chat_id) REFERENCES chats(id)
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
`

// Store is the SQLite-backed conversation log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the chat database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migration for dbs created before assistant metadata existed.
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN model TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN total_tokens INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN tool_calls TEXT DEFAULT ''`)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateChat creates a conversation owned by userID and returns its id.
func (s *Store) CreateChat(ctx context.Context, actor orchestrator.Actor, userID, title string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required: %w", fault.ErrInvalidInput)
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title) VALUES (?, ?, ?)`,
		id, userID, title)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return id, nil
}

// GetChat resolves a chat and checks the actor may read it. A missing chat is
// a not-found error; a chat owned by someone else is permission-denied for
// user actors. System and AI actors read any chat.
func (s *Store) GetChat(ctx context.Context, actor orchestrator.Actor, chatID string) (orchestrator.Chat, error) {
	var chat orchestrator.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id FROM chats WHERE id = ?`, chatID).
		Scan(&chat.ID, &chat.UserID)
	if err == sql.ErrNoRows {
		return orchestrator.Chat{}, fault.NotFound("chat", chatID)
	}
	if err != nil {
		return orchestrator.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	if err := s.authorize(actor, chat); err != nil {
		return orchestrator.Chat{}, err
	}
	return chat, nil
}

// Messages returns the most recent messages of a chat in chronological order.
func (s *Store) Messages(ctx context.Context, actor orchestrator.Actor, chatID string, limit int) ([]orchestrator.ChatMessage, error) {
	if _, err := s.GetChat(ctx, actor, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	// Newest-first window, reversed to chronological below.
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages
		 WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []orchestrator.ChatMessage
	for rows.Next() {
		var m orchestrator.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AddMessage appends one message and returns its id.
func (s *Store) AddMessage(ctx context.Context, actor orchestrator.Actor, chatID string, msg orchestrator.NewMessage) (string, error) {
	if _, err := s.GetChat(ctx, actor, chatID); err != nil {
		return "", err
	}
	if msg.Role == "" {
		return "", fmt.Errorf("message role is required: %w", fault.ErrInvalidInput)
	}
	actorType := msg.ActorType
	if actorType == "" {
		actorType = actor.Type
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, actor_type, model, total_tokens, tool_calls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, chatID, msg.Role, msg.Content, actorType, msg.Model, msg.TotalTokens, msg.ToolCalls, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("add message: %w", err)
	}
	return id, nil
}

// ListChats returns the actor's own chats, newest first.
func (s *Store) ListChats(ctx context.Context, actor orchestrator.Actor, userID string, limit int) ([]orchestrator.Chat, error) {
	if actor.Type == "user" && actor.ID != userID {
		return nil, fault.PermissionDenied(actor.ID, "chats of "+userID)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id FROM chats WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []orchestrator.Chat
	for rows.Next() {
		var c orchestrator.Chat
		if err := rows.Scan(&c.ID, &c.UserID); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// authorize enforces ownership for user actors. System and AI actors are
// trusted callers.
func (s *Store) authorize(actor orchestrator.Actor, chat orchestrator.Chat) error {
	if actor.Type == "user" && actor.ID != chat.UserID {
		return fault.PermissionDenied(actor.ID, "chat "+chat.ID)
	}
	return nil
}
