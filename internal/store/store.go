package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pavelanni/revision/internal/session"
)

// DefaultDSN keeps everything in process memory.
const DefaultDSN = ":memory:"

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes read-modify-write of sessions
}

func New(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quiz_sessions (
		id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS llm_exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession inserts or replaces a session.
func (s *Store) SaveSession(ctx context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSession(ctx, sess)
}

func (s *Store) saveSession(ctx context.Context, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_sessions (id, phase, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET phase = excluded.phase, data = excluded.data, updated_at = excluded.updated_at`,
		sess.ID, sess.Phase, string(data), now, now,
	)
	return err
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM quiz_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return session.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

// UpdateSession applies fn to the stored session and saves the result if fn
// succeeds. The stored value is left unchanged when fn returns an error; the
// returned session is then whatever fn returned.
func (s *Store) UpdateSession(ctx context.Context, id string, fn func(session.Session) (session.Session, error)) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	next, err := fn(sess)
	if err != nil {
		return next, err
	}
	if err := s.saveSession(ctx, next); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return next, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE id = ?`, id)
	return err
}

// CountSessions returns the number of stored sessions per phase.
func (s *Store) CountSessions(ctx context.Context) (map[session.Phase]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT phase, COUNT(*) FROM quiz_sessions GROUP BY phase`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[session.Phase]int)
	for rows.Next() {
		var phase string
		var n int
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, err
		}
		counts[session.Phase(phase)] = n
	}
	return counts, rows.Err()
}
