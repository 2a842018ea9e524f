// Package blob implements the key-value JSON document store that backs all
// Pitchside content. Each blob is one named JSON document (a content array
// such as "all-fixtures", or an object such as "current-settings") and is
// the unit of atomic read/write.
//
// Writes are conditional on a monotonic version number. A Put with a stale
// version fails with ErrVersionConflict instead of silently overwriting a
// concurrent writer's change; callers re-read and retry.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrVersionConflict is returned by Put when the expected version does
	// not match the stored version, i.e. another writer got there first.
	ErrVersionConflict = errors.New("blob version conflict")
)

// Store is the interface all blob backends implement.
type Store interface {
	// Get returns the blob's contents and current version. Returns
	// ErrNotFound (with version 0) when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, int64, error)

	// Put writes data under key. version must be the version returned by
	// the preceding Get, or 0 to create a blob that must not yet exist.
	// Returns the new version, or ErrVersionConflict on a stale version.
	Put(ctx context.Context, key string, data []byte, version int64) (int64, error)

	// Delete removes a blob. Returns ErrNotFound if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Keys lists all stored blob keys in lexical order.
	Keys(ctx context.Context) ([]string, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Open creates a Store for the given driver. Supported drivers are
// "sqlite" (dsn is a file path, or empty for in-memory) and "postgres"
// (dsn is a standard connection string).
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(dsn)
	case "postgres":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown blob store driver %q", driver)
	}
}

// isUniqueViolation reports whether a driver error is a primary-key or
// unique-constraint violation. Matched on message text because the sqlite
// and pgx drivers expose different error types.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
