package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rokbot/titlebot/internal/title"
)

var ErrProfileNotFound = errors.New("profile not found")

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	kingdom TEXT NOT NULL,
	x INTEGER NOT NULL CHECK (x >= 0),
	y INTEGER NOT NULL CHECK (y >= 0),
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS title_durations (
	title TEXT NOT NULL,
	kingdom TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL CHECK (duration_seconds >= 0),
	PRIMARY KEY (title, kingdom)
);

CREATE TABLE IF NOT EXISTS locked_titles (
	title TEXT NOT NULL,
	kingdom TEXT NOT NULL,
	is_locked INTEGER NOT NULL DEFAULT 0,
	locked_by TEXT,
	locked_at DATETIME,
	PRIMARY KEY (title, kingdom)
);

CREATE TABLE IF NOT EXISTS title_request_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	title TEXT NOT NULL,
	kingdom TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('successful', 'unsuccessful')),
	outcome TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Profile is what a user registered with the register command.
type Profile struct {
	UserID   string
	Username string
	Kingdom  string
	X        int
	Y        int
}

type Lock struct {
	Locked   bool
	LockedBy string
	LockedAt time.Time
}

type Status string

const (
	StatusSuccessful   Status = "successful"
	StatusUnsuccessful Status = "unsuccessful"
)

type LogEntry struct {
	RequestID string      `json:"requestId"`
	UserID    string      `json:"userId"`
	Username  string      `json:"username"`
	Title     title.Title `json:"title"`
	Kingdom   string      `json:"kingdom"`
	Status    Status      `json:"status"`
	Outcome   string      `json:"outcome"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Store is the sqlite-backed persistence boundary. The automation core only does
// key lookups against it.
type Store struct {
	db *sql.DB
}

// Open opens (and creates when missing) the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Profile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, kingdom, x, y FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Username, &p.Kingdom, &p.X, &p.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, username, kingdom, x, y, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			kingdom = excluded.kingdom,
			x = excluded.x,
			y = excluded.y,
			updated_at = CURRENT_TIMESTAMP`,
		p.UserID, p.Username, p.Kingdom, p.X, p.Y)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// CustomDuration returns the kingdom's override for a title, found=false when none is set.
func (s *Store) CustomDuration(ctx context.Context, t title.Title, kingdom string) (time.Duration, bool, error) {
	var secs int
	err := s.db.QueryRowContext(ctx,
		`SELECT duration_seconds FROM title_durations WHERE title = ? AND kingdom = ?`, string(t), kingdom,
	).Scan(&secs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query custom duration: %w", err)
	}
	return time.Duration(secs) * time.Second, true, nil
}

func (s *Store) SetDuration(ctx context.Context, t title.Title, kingdom string, d time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO title_durations (title, kingdom, duration_seconds) VALUES (?, ?, ?)
		ON CONFLICT(title, kingdom) DO UPDATE SET duration_seconds = excluded.duration_seconds`,
		string(t), kingdom, int(d.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to save custom duration: %w", err)
	}
	return nil
}

func (s *Store) LockState(ctx context.Context, t title.Title, kingdom string) (Lock, error) {
	var (
		l        Lock
		lockedBy sql.NullString
		lockedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT is_locked, locked_by, locked_at FROM locked_titles WHERE title = ? AND kingdom = ?`, string(t), kingdom,
	).Scan(&l.Locked, &lockedBy, &lockedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Lock{}, nil
	}
	if err != nil {
		return Lock{}, fmt.Errorf("failed to query title lock: %w", err)
	}
	l.LockedBy = lockedBy.String
	l.LockedAt = lockedAt.Time
	return l, nil
}

func (s *Store) IsLocked(ctx context.Context, t title.Title, kingdom string) (bool, error) {
	l, err := s.LockState(ctx, t, kingdom)
	return l.Locked, err
}

func (s *Store) SetLocked(ctx context.Context, t title.Title, kingdom string, locked bool, by string) error {
	var (
		lockedBy any
		lockedAt any
	)
	if locked {
		lockedBy = by
		lockedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locked_titles (title, kingdom, is_locked, locked_by, locked_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(title, kingdom) DO UPDATE SET
			is_locked = excluded.is_locked,
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at`,
		string(t), kingdom, locked, lockedBy, lockedAt)
	if err != nil {
		return fmt.Errorf("failed to save title lock: %w", err)
	}
	return nil
}

func (s *Store) LogRequest(ctx context.Context, e LogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO title_request_log (request_id, user_id, username, title, kingdom, status, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.UserID, e.Username, string(e.Title), e.Kingdom, string(e.Status), e.Outcome, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to log title request: %w", err)
	}
	return nil
}

// RecentRequests returns the latest log entries for a kingdom, newest first.
func (s *Store) RecentRequests(ctx context.Context, kingdom string, limit int) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, user_id, username, title, kingdom, status, outcome, created_at
		FROM title_request_log WHERE kingdom = ? ORDER BY id DESC LIMIT ?`, kingdom, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query request log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			e      LogEntry
			t      string
			status string
		)
		if err := rows.Scan(&e.RequestID, &e.UserID, &e.Username, &t, &e.Kingdom, &status, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		e.Title = title.Title(t)
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
