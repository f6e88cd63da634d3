// Package journal records evaluations in an SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("sel.journal")

// Entry is one recorded evaluation.
type Entry struct {
	ID        int64
	Session   string
	Source    string
	Value     string
	IsError   bool
	Duration  time.Duration
	CreatedAt time.Time
}

// Journal is an append-only log of evaluations. It is safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS evaluations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session     TEXT NOT NULL,
		source      TEXT NOT NULL,
		value       TEXT NOT NULL,
		is_error    INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Infof("journal open at %s", path)
	return &Journal{db: db, path: path}, nil
}

// Path returns the database path the journal was opened with.
func (j *Journal) Path() string { return j.path }

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends e and returns its id. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO evaluations (session, source, value, is_error, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Session, e.Source, e.Value, e.IsError, int64(e.Duration), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording evaluation: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, session, source, value, is_error, duration_ns, created_at
		 FROM evaluations ORDER BY id DESC LIMIT ?`, n)
}

// Session returns up to n entries recorded for session, newest first.
func (j *Journal) Session(ctx context.Context, session string, n int) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, session, source, value, is_error, duration_ns, created_at
		 FROM evaluations WHERE session = ? ORDER BY id DESC LIMIT ?`, session, n)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			duration int64
			created  int64
		)
		if err := rows.Scan(&e.ID, &e.Session, &e.Source, &e.Value, &e.IsError, &duration, &created); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.Duration = time.Duration(duration)
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
