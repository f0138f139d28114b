package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"SupportChat/internal/backend"
	"SupportChat/internal/session"
)

// ErrSessionNotFound is returned when no archived session has the given id
var ErrSessionNotFound = errors.New("session not found")

// Session represents an archived chat session
type Session struct {
	ID             string
	StartedAt      time.Time
	BackendURL     string
	ConversationID backend.ID
	Messages       []session.Message
}

// SessionSummary describes an archived session without its messages
type SessionSummary struct {
	ID             string
	StartedAt      time.Time
	BackendURL     string
	ConversationID backend.ID
	MessageCount   int
}

// Store archives transcripts in SQLite
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	backend_url TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tool_used TEXT NOT NULL DEFAULT '',
	tool_result TEXT,
	products TEXT NOT NULL DEFAULT '[]',
	actions TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(id),
	UNIQUE(session_id, seq)
);`

// Open opens or creates the archive database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession starts a new archived session
func (s *Store) CreateSession(ctx context.Context, backendURL string) (*Session, error) {
	sess := &Session{
		ID:         uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		BackendURL: backendURL,
		Messages:   []session.Message{},
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, started_at, backend_url) VALUES (?, ?, ?)",
		sess.ID, sess.StartedAt, sess.BackendURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// AppendMessage archives msg after the session's existing messages
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg session.Message) error {
	products, err := json.Marshal(nonNilProducts(msg.Products))
	if err != nil {
		return fmt.Errorf("failed to marshal products: %w", err)
	}
	actions, err := json.Marshal(nonNilActions(msg.Actions))
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	var toolResult sql.NullString
	if len(msg.ToolResult) > 0 {
		toolResult = sql.NullString{String: string(msg.ToolResult), Valid: true}
	}

	createdAt := msg.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, seq, role, content, tool_used, tool_result, products, actions, created_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ? FROM messages WHERE session_id = ?`,
		sessionID, string(msg.Role), msg.Content, msg.ToolUsed, toolResult,
		string(products), string(actions), createdAt.UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetConversationID records the backend conversation id for a session. Like
// the live transcript, the first recorded id is kept.
func (s *Store) SetConversationID(ctx context.Context, sessionID string, id backend.ID) error {
	if id == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET conversation_id = ? WHERE id = ? AND conversation_id = ''",
		string(id), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation id: %w", err)
	}
	return nil
}

// LoadSession loads an archived session with its messages in order
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*Session, error) {
	sess := &Session{ID: sessionID}

	var conversationID string
	err := s.db.QueryRowContext(ctx,
		"SELECT started_at, backend_url, conversation_id FROM sessions WHERE id = ?", sessionID,
	).Scan(&sess.StartedAt, &sess.BackendURL, &conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess.ConversationID = backend.ID(conversationID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_used, tool_result, products, actions, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []session.Message{}
	for rows.Next() {
		var (
			msg        session.Message
			role       string
			toolResult sql.NullString
			products   string
			actions    string
		)
		if err := rows.Scan(&role, &msg.Content, &msg.ToolUsed, &toolResult, &products, &actions, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Role = session.Role(role)
		if toolResult.Valid {
			msg.ToolResult = json.RawMessage(toolResult.String)
		}
		if err := json.Unmarshal([]byte(products), &msg.Products); err != nil {
			return nil, fmt.Errorf("failed to unmarshal products: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &msg.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
		if msg.Role == session.RoleUser && len(msg.Products) == 0 && len(msg.Actions) == 0 {
			msg.Products, msg.Actions = nil, nil
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	sess.Messages = messages
	return sess, nil
}

// ListSessions returns the most recent archived sessions, newest first
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.backend_url, s.conversation_id, COUNT(m.id)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	summaries := []SessionSummary{}
	for rows.Next() {
		var (
			sum            SessionSummary
			conversationID string
		)
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.BackendURL, &conversationID, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.ConversationID = backend.ID(conversationID)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return summaries, nil
}

func nonNilProducts(p []backend.Product) []backend.Product {
	if p == nil {
		return []backend.Product{}
	}
	return p
}

func nonNilActions(a []backend.Action) []backend.Action {
	if a == nil {
		return []backend.Action{}
	}
	return a
}
