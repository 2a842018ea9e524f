package blob

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PostgresStore persists blobs in a Postgres table. Intended for deployments
// where multiple Pitchside instances share one store; the conditional writes
// in Put give the same lost-update protection as the SQLite backend.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres connects to Postgres using a standard connection string and
// creates the blobs table if missing.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open blob database: %w", err)
	}

	const q = `CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(q); err != nil {
		return nil, fmt.Errorf("migrate blob database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Get returns the blob's contents and current version.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var row struct {
		Value   string `db:"value"`
		Version int64  `db:"version"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT value, version FROM blobs WHERE key = $1", key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get blob %q: %w", key, err)
	}
	return []byte(row.Value), row.Version, nil
}

// Put writes data under key, conditional on the expected version.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte, version int64) (int64, error) {
	if version == 0 {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO blobs (key, value, version) VALUES ($1, $2, 1)", key, string(data))
		if err != nil {
			if isUniqueViolation(err) {
				return 0, ErrVersionConflict
			}
			return 0, fmt.Errorf("insert blob %q: %w", key, err)
		}
		return 1, nil
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE blobs SET value = $1, version = version + 1, updated_at = now() WHERE key = $2 AND version = $3",
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
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE key = $1", key)
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
func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT key FROM blobs ORDER BY key"); err != nil {
		return nil, fmt.Errorf("list blob keys: %w", err)
	}
	return keys, nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
