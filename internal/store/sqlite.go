package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"docenhance/internal/job"
)

// SQLite persists job records in a single-file SQLite database. Records are
// stored as JSON keyed by document location, which keeps the schema stable
// while the record shape evolves.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	doc_key    TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}
	// SQLite tolerates a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize job database: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, rec *job.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode job record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (doc_key, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		rec.Ref.Key(), string(data), rec.UpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"))
	if err != nil {
		return fmt.Errorf("failed to write job record: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (*job.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM jobs WHERE doc_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	var rec job.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode job record: %w", err)
	}
	return &rec, nil
}

func (s *SQLite) List(ctx context.Context) ([]*job.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM jobs ORDER BY doc_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	defer rows.Close()

	var out []*job.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		var rec job.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode job record: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	return out, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE doc_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete job record: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
