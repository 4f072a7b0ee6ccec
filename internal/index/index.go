package index

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - sources, messages, runs
const currentSchemaVersion = 1

// Index is the persistent message index.
type Index struct {
	db   *sqlx.DB
	path string

	lock *lockFile

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// Open creates or opens the index database at path, applying pragmas and
// schema migrations. It does not take the run lock.
func Open(path string) (*Index, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to index: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Index{db: db, path: path, Now: time.Now}, nil
}

// Path returns the database file path.
func (ix *Index) Path() string { return ix.path }

// Close releases the lock, if held, and closes the database.
func (ix *Index) Close() error {
	var lockErr error
	if ix.lock != nil {
		lockErr = ix.Unlock()
	}
	if ix.db == nil {
		return lockErr
	}
	if err := ix.db.Close(); err != nil {
		return err
	}
	return lockErr
}

// Save flushes the write-ahead log into the main database file.
func (ix *Index) Save(ctx context.Context) error {
	if _, err := ix.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Optimize compacts the database file and refreshes planner statistics.
func (ix *Index) Optimize(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := ix.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("optimize index: %s: %w", stmt, err)
		}
	}
	return nil
}

// Size returns the number of indexed messages.
func (ix *Index) Size(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM messages"); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// DiskSize returns the size in bytes of the database file.
func (ix *Index) DiskSize() (int64, error) {
	st, err := os.Stat(ix.path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (ix *Index) timestamp() string {
	return ix.Now().UTC().Format(time.RFC3339Nano)
}

func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates missing tables and runs migrations. Idempotent.
func applySchema(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("index schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (ix *Index) verifyPragma(name, expected string) error {
	var value string
	if err := ix.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
