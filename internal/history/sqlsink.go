package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLSink appends events to the gateway_history table of a SQLite database
// (modernc.org/sqlite). The schema is created if missing.
// DSN examples: sqlite:///path/to/history.db, /path/to/history.db, :memory:
type SQLSink struct {
	db *sql.DB
}

func NewSQLSinkFromDSN(dsn string) (*SQLSink, error) {
	path := strings.TrimPrefix(strings.TrimSpace(dsn), "sqlite://")
	if path == "" {
		return nil, errors.New("empty DSN for SQL history sink")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)
	s := &SQLSink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gateway_history(
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			event TEXT NOT NULL,
			pid INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			detail TEXT NOT NULL,
			error TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_gateway_history_occurred ON gateway_history(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_gateway_history_run ON gateway_history(run_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLSink) Send(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_history(id, occurred_at, event, pid, run_id, detail, error)
		VALUES(?, ?, ?, ?, ?, ?, ?);`,
		e.ID, e.OccurredAt.UTC(), string(e.Type), e.PID, e.RunID, e.Detail, e.Error)
	return err
}

// Recent returns up to limit events, newest first.
func (s *SQLSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, event, pid, run_id, detail, error
		FROM gateway_history ORDER BY seq DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			e   Event
			typ string
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &typ, &e.PID, &e.RunID, &e.Detail, &e.Error); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLSink) Close() error { return s.db.Close() }
