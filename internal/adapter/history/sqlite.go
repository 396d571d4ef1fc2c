package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"persai-chat/internal/domain"
	"persai-chat/internal/usecase"
)

// SQLiteStore persists conversation transcripts using SQLite. It implements
// usecase.TranscriptStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			tool_call  TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession records a session id. Saving an already known id is a no-op.
func (s *SQLiteStore) SaveSession(_ context.Context, sessionID string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO sessions (session_id, created_at) VALUES (?, ?)",
		sessionID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// AppendMessages appends the messages of one completed turn. Row ids are
// ULIDs, so insertion order and chronological order agree.
func (s *SQLiteStore) AppendMessages(_ context.Context, sessionID string, msgs []domain.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO messages (id, session_id, role, content, created_at, tool_call) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		var toolJSON sql.NullString
		if m.ToolCall != nil {
			raw, err := json.Marshal(m.ToolCall)
			if err != nil {
				return fmt.Errorf("marshal tool call: %w", err)
			}
			toolJSON = sql.NullString{String: string(raw), Valid: true}
		}
		id := ulid.MustNew(ulid.Now(), rand.Reader).String()
		if _, err := stmt.Exec(id, sessionID, m.Role, m.Content, m.CreatedAt, toolJSON); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit()
}

// LatestSession returns the most recently created session id, or "" when
// the store is empty.
func (s *SQLiteStore) LatestSession(_ context.Context) (string, error) {
	row := s.db.QueryRow("SELECT session_id FROM sessions ORDER BY created_at DESC LIMIT 1")
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// LoadMessages returns all messages of a session in insertion order.
func (s *SQLiteStore) LoadMessages(_ context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.Query(
		"SELECT role, content, created_at, tool_call FROM messages WHERE session_id = ? ORDER BY id",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var toolJSON sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt, &toolJSON); err != nil {
			return nil, err
		}
		if toolJSON.Valid {
			var tc domain.ToolCallInfo
			if err := json.Unmarshal([]byte(toolJSON.String), &tc); err != nil {
				return nil, fmt.Errorf("unmarshal tool call: %w", err)
			}
			m.ToolCall = &tc
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Compile-time interface check.
var _ usecase.TranscriptStore = (*SQLiteStore)(nil)
