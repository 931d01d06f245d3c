// Package eventlog keeps an append-only audit trail of session lifecycle
// events in SQLite, separate from the trade history.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// EventRecord is one session lifecycle event.
type EventRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("event log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_user_ts ON session_events(user_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Append(ctx context.Context, userID, kind, detail string) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("event log store not initialized")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO session_events (user_id, kind, detail, created_at) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(userID), strings.TrimSpace(kind), detail, time.Now().UnixMilli())
	return err
}

// Recent returns the newest events for a user. An empty userID lists across
// all users.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]EventRecord, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("event log store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, user_id, kind, detail, created_at FROM session_events`
	args := []interface{}{}
	if uid := strings.TrimSpace(userID); uid != "" {
		query += ` WHERE user_id = ?`
		args = append(args, uid)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var detail sql.NullString
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Kind, &detail, &ts); err != nil {
			return nil, err
		}
		rec.Detail = detail.String
		rec.CreatedAt = time.UnixMilli(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}
