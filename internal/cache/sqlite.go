package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	sqlGetEntry = `SELECT value, expires_at FROM cache_entries WHERE key = ?`

	sqlPutEntry = `INSERT INTO cache_entries (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		 value = excluded.value,
		 expires_at = excluded.expires_at`

	sqlDeleteEntry = `DELETE FROM cache_entries WHERE key = ?`

	sqlPurgeExpired = `DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?`
)

// SQLiteStore persists entries in a single SQLite table so the cache and
// sessions survive restarts of the CLI. Expiry is stored as Unix
// nanoseconds, 0 meaning never.
type SQLiteStore struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath, applies
// migrations and purges entries that expired while the process was down.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("cache: sqlite backend requires a database path")
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger, nowFunc: time.Now}

	purged, err := s.Purge(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite cache opened",
		slog.String("db_path", dbPath),
		slog.Int64("purged", purged),
	)

	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)

	err := s.db.QueryRowContext(ctx, sqlGetEntry, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("cache: reading %q: %w", key, err)
	}

	if expiresAt > 0 && expired(s.nowFunc(), time.Unix(0, expiresAt)) {
		if _, err := s.db.ExecContext(ctx, sqlDeleteEntry, key); err != nil {
			s.logger.Warn("dropping expired cache entry failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}

		return nil, false, nil
	}

	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if deadline := expiry(s.nowFunc(), ttl); !deadline.IsZero() {
		expiresAt = deadline.UnixNano()
	}

	if _, err := s.db.ExecContext(ctx, sqlPutEntry, key, value, expiresAt); err != nil {
		return fmt.Errorf("cache: writing %q: %w", key, err)
	}

	return nil
}

func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteEntry, key); err != nil {
		return fmt.Errorf("cache: deleting %q: %w", key, err)
	}

	return nil
}

// Purge deletes every expired entry and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, sqlPurgeExpired, s.nowFunc().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache: purging expired entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: counting purged entries: %w", err)
	}

	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
