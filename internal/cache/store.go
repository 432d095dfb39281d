// Package cache provides the key-value stores behind the index cache and the
// session store, plus the cache-aside helpers layered on top of them.
//
// Stores deal in bytes and guarantee atomicity per key only. Nothing in this
// package coordinates across keys: concurrent populates of the same key are
// last-writer-wins.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("cache: unknown backend")

// Store is a byte-valued key-value store with per-entry TTL. A ttl <= 0
// stores the entry without expiry. Get reports a miss for expired entries.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Size       int    // memory: max entries
	SQLitePath string // sqlite: database file
	Redis      RedisOptions
}

// Open constructs the Store named by opts.Backend. An empty backend means
// memory.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(opts.Size)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath, logger)
	case BackendRedis:
		return NewRedisStore(ctx, opts.Redis, logger)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, opts.Backend)
	}
}

// expiry converts a ttl into an absolute deadline; the zero time means the
// entry never expires.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return now.Add(ttl)
}

func expired(now, expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
