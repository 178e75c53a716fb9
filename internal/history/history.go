// Package history records conversation transcripts in a local SQLite
// database. Recording is best-effort: a failed append is logged by the
// caller, never surfaced to the user.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Roles of a transcript entry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Kinds of a transcript entry.
const (
	KindText   = "text"
	KindImage  = "image"
	KindVision = "vision"
)

// Message is one transcript entry. Image entries store the rendered prompt,
// not the bytes.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds transcripts in baobei.db under the configured data directory.
type Store struct {
	db *sql.DB
}

// Open creates or opens the transcript database in dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "baobei.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one transcript entry.
func (s *Store) Append(userID, role, kind, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, user_id, role, kind, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, role, kind, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for userID, newest first.
func (s *Store) Recent(userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, role, kind, content, created_at
		   FROM messages WHERE user_id = ?
		  ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
