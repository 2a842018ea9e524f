package blob

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists blobs in a single SQLite table. It is the default
// backend; pass an empty path for an in-memory store (used by tests).
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite creates a SQLite-backed blob store rooted at dataDir. The
// directory is created if missing.
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "pitchside.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open blob database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate blob database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const q = `CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(q); err != nil {
		return err
	}
	return nil
}

// Get returns the blob's contents and current version.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var row struct {
		Value   string `db:"value"`
		Version int64  `db:"version"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT value, version FROM blobs WHERE key = ?", key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get blob %q: %w", key, err)
	}
	return []byte(row.Value), row.Version, nil
}

// Put writes data under key, conditional on the expected version.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte, version int64) (int64, error) {
	if version == 0 {
		// Create-only path: the insert fails on a duplicate key, which means
		// someone created the blob since the caller's Get.
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO blobs (key, value, version, updated_at) VALUES (?, ?, 1, CURRENT_TIMESTAMP)",
			key, string(data))
		if err != nil {
			if isUniqueViolation(err) {
				return 0, ErrVersionConflict
			}
			return 0, fmt.Errorf("insert blob %q: %w", key, err)
		}
		return 1, nil
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE blobs SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE key = ? AND version = ?",
		string(data), key, version)
	if err != nil {
		return 0, fmt.Errorf("update blob %q: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update blob %q rows affected: %w", key, err)
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}
	return version + 1, nil
}

// Delete removes a blob by key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blob %q rows affected: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Keys lists all stored blob keys.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT key FROM blobs ORDER BY key"); err != nil {
		return nil, fmt.Errorf("list blob keys: %w", err)
	}
	return keys, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
