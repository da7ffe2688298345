// Package session persists interactive-session history to SQLite.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates the requested session has no entries.
var ErrNotFound = errors.New("session not found")

// Entry is one evaluated input in a session.
type Entry struct {
	SessionID string
	Seq       int
	Input     string
	Outcome   string // "ok", "compile_error" or "runtime_error"
	Detail    string // printed values or the error message
	At        time.Time
}

// Store handles SQLite storage for session history.
type Store struct {
	db        *sql.DB
	sessionID string
	seq       int
	mu        sync.Mutex
}

// Open opens (creating if needed) a history database and starts a new
// session in it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS history (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		input TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL,
		at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}

	return &Store{
		db:        db,
		sessionID: uuid.NewString(),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SessionID returns the identifier of the current session.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Append records an evaluated input for the current session.
func (s *Store) Append(input, outcome, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	_, err := s.db.Exec(
		"INSERT INTO history (session_id, seq, input, outcome, detail, at) VALUES (?, ?, ?, ?, ?, ?)",
		s.sessionID, s.seq, input, outcome, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving history entry: %w", err)
	}
	return nil
}

// Replay returns all entries of the given session in evaluation order.
func (s *Store) Replay(sessionID string) ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT session_id, seq, input, outcome, detail, at FROM history WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.Seq, &e.Input, &e.Outcome, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// Recent returns the most recent n entries across all sessions, newest
// first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT session_id, seq, input, outcome, detail, at FROM history ORDER BY at DESC, seq DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("loading recent history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.Seq, &e.Input, &e.Outcome, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
