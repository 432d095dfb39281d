package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Key namespaces. Keys are always built from origin paths.
const (
	prefixPath = "path:"
	prefixList = "list:"
	prefixFile = "file:"
)

// PathKey addresses the object record of a listed path.
func PathKey(origin string) string { return prefixPath + origin }

// ListKey addresses the raw children of a folder.
func ListKey(origin string) string { return prefixList + origin }

// FileKey addresses an object fetched by direct lookup.
func FileKey(origin string) string { return prefixFile + origin }

// Aside is the cache-aside layer: values are JSON-encoded into the
// underlying Store, and a read failure of the store degrades to a miss.
type Aside struct {
	store  Store
	logger *slog.Logger
}

// NewAside wraps store. A nil logger uses slog.Default().
func NewAside(store Store, logger *slog.Logger) *Aside {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aside{store: store, logger: logger}
}

// Store returns the underlying store.
func (a *Aside) Store() Store {
	return a.store
}

// Forget deletes keys. Every key is attempted; the first error is returned.
func (a *Aside) Forget(ctx context.Context, keys ...string) error {
	var first error

	for _, k := range keys {
		if err := a.store.Delete(ctx, k); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Remember returns the value cached under key, or runs populate, stores its
// result for ttl and returns it. A populate error is returned unmodified and
// nothing is stored. Failing to store a populated value only logs: the
// caller still gets the value.
//
// There is no single-flight: concurrent misses on one key each run populate
// and the last write wins.
func Remember[T any](ctx context.Context, a *Aside, key string, ttl time.Duration,
	populate func(context.Context) (T, error),
) (T, error) {
	if v, ok := lookup[T](ctx, a, key); ok {
		return v, nil
	}

	a.logger.Debug("cache miss", slog.String("key", key))

	v, err := populate(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return v, nil
	}

	if err := a.store.Put(ctx, key, data, ttl); err != nil {
		a.logger.Warn("cache store failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	return v, nil
}

// Lookup reads key without populating.
func Lookup[T any](ctx context.Context, a *Aside, key string) (T, bool) {
	return lookup[T](ctx, a, key)
}

func lookup[T any](ctx context.Context, a *Aside, key string) (T, bool) {
	var v T

	data, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.logger.Warn("cache read failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		return v, false
	}

	if !ok {
		return v, false
	}

	if err := json.Unmarshal(data, &v); err != nil {
		a.logger.Warn("dropping undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		_ = a.store.Delete(ctx, key)

		var zero T

		return zero, false
	}

	a.logger.Debug("cache hit", slog.String("key", key))

	return v, true
}
