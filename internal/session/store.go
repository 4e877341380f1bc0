package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store abstracts session persistence. Get returns the stored session for the
// derived key, or a fresh default session on a miss. Put stamps UpdatedAt and
// overwrites the full record; the last write for a key wins.
type Store interface {
	Get(ctx context.Context, sender, sessionID string) (*Session, error)
	Put(ctx context.Context, sender, sessionID string, s *Session) error
	Close() error
}

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// SQLiteStore implements Store backed by SQLite. Each session is one JSON
// blob under its derived key; absent fields in legacy blobs decode to zero
// values and are normalized rather than rejected.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the session database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(createSessionsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sender, sessionID string) (*Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE key = ?", Key(sender, sessionID),
	).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return New(s.now()), nil
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.normalize()
	return &sess, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sender, sessionID string, sess *Session) error {
	sess.State.UpdatedAt = s.now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		Key(sender, sessionID), string(data), sess.State.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-memory Store used in tests and ephemeral runs. It
// round-trips sessions through JSON so callers never alias stored state.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Get(ctx context.Context, sender, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[Key(sender, sessionID)]
	if !ok {
		return New(m.now()), nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.normalize()
	return &sess, nil
}

func (m *MemoryStore) Put(ctx context.Context, sender, sessionID string, sess *Session) error {
	sess.State.UpdatedAt = m.now()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.mu.Lock()
	m.data[Key(sender, sessionID)] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
