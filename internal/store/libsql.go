package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/conveyor/pkg/schema"
)

// LibSQLStore implements LogStore on libSQL (embedded SQLite fork).
// Each execution log is a single row keyed by workflow ID, holding the
// JSON document as written by the executor. A row swap inside a single
// statement gives the same all-or-nothing guarantee as the file store's
// rename.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and applies
// pending migrations. The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(ctx context.Context, dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	s := &LibSQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

func (s *LibSQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS execution_logs (
		workflow_id TEXT PRIMARY KEY,
		document    TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("migrate execution_logs: %w", err)
	}
	return nil
}

// Write upserts the document for id.
func (s *LibSQLStore) Write(ctx context.Context, id string, doc []byte) error {
	if id == "" {
		return schema.NewError(schema.ErrCodeValidation, "log id is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_logs (workflow_id, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(workflow_id) DO UPDATE SET document=excluded.document, updated_at=excluded.updated_at`,
		id, string(doc), time.Now().UTC(),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write %s: %s", id, err.Error()).WithCause(err)
	}
	return nil
}

// Read returns the document for id.
func (s *LibSQLStore) Read(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM execution_logs WHERE workflow_id = ?`, id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no execution log for %q", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read %s: %s", id, err.Error()).WithCause(err)
	}
	return []byte(doc), nil
}

// Delete removes the row for id; a missing row is not an error.
func (s *LibSQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM execution_logs WHERE workflow_id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete %s: %s", id, err.Error()).WithCause(err)
	}
	return nil
}

// List returns all persisted workflow IDs, sorted.
func (s *LibSQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT workflow_id FROM execution_logs ORDER BY workflow_id`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "list: %s", err.Error()).WithCause(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list: %s", err.Error()).WithCause(err)
	}
	return ids, nil
}
