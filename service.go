package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/tonimelisma/onedrive-index/internal/cache"
	"github.com/tonimelisma/onedrive-index/internal/config"
	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/index"
	"github.com/tonimelisma/onedrive-index/internal/protect"
)

// sessionStoreSize bounds the in-process session store. Each session holds
// one entry per unlocked key ID.
const sessionStoreSize = 1024

// openService wires the Graph client, cache store and credential guard into
// an index.Service. The returned func closes the stores.
func openService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*index.Service, func() error, error) {
	ts, err := graph.TokenSourceFromPath(context.WithoutCancel(ctx), cfg.Index.TokenPath, cfg.Index.ClientID, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("loading token from %s: %w", cfg.Index.TokenPath, err)
	}

	client := graph.NewClient(graph.DefaultBaseURL, newHTTPClient(&cfg.Network), ts, logger,
		graph.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Network.RequestsPerSecond), cfg.Network.Burst)),
		graph.WithUserAgent(cfg.Network.UserAgent),
		graph.WithDrive(cfg.Index.DriveID),
	)

	store, err := cache.Open(ctx, cacheOptions(&cfg.Cache), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Backend, err)
	}

	sessions, err := sessionStore(cfg.Cache.Backend, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	closeStores := func() error {
		err := store.Close()
		if sessions != store {
			err = errors.Join(err, sessions.Close())
		}

		return err
	}

	svc, err := newService(client, store, sessions, cfg, logger)
	if err != nil {
		_ = closeStores()
		return nil, nil, err
	}

	return svc, closeStores, nil
}

// sessionStore picks where credentials live. The memory cache is a bounded
// LRU that listing traffic churns, so memory sessions get a store of their
// own. Persistent backends share the cache store so sessions outlive the
// process.
func sessionStore(backend string, store cache.Store) (cache.Store, error) {
	if backend != "" && backend != cache.BackendMemory {
		return store, nil
	}

	return cache.NewMemoryStore(sessionStoreSize)
}

// newService builds the index core over any remote and store. Tests call it
// with fakes.
func newService(remote index.RemoteStorage, store, sessions cache.Store, cfg *config.Config,
	logger *slog.Logger,
) (*index.Service, error) {
	subtrees := make([]protect.Subtree, 0, len(cfg.Protect.Subtrees))
	for _, s := range cfg.Protect.Subtrees {
		subtrees = append(subtrees, protect.Subtree{Path: s.Path, KeyID: s.KeyID, Password: s.Password})
	}

	guard, err := protect.NewGuard(cfg.Protect.Secret, subtrees, logger)
	if err != nil {
		return nil, err
	}

	return index.NewService(remote, cache.NewAside(store, logger), sessions, guard, index.Config{
		Root:              cfg.Index.Root,
		Expires:           cfg.Index.ExpiresDuration(),
		PageSize:          cfg.Index.PageSize,
		InlineMaxSize:     cfg.Index.InlineMaxBytes(),
		RemoteTimeout:     cfg.Network.RemoteTimeoutDuration(),
		CredentialTTL:     cfg.Protect.CredentialTTLDuration(),
		ThumbnailFallback: cfg.Index.ThumbnailFallback,
	}, logger), nil
}

func cacheOptions(c *config.CacheConfig) cache.Options {
	return cache.Options{
		Backend:    c.Backend,
		Size:       c.Size,
		SQLitePath: c.SQLitePath,
		Redis: cache.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		},
	}
}

// newHTTPClient bounds connection setup only; per-call deadlines come from
// the service's remote timeout.
func newHTTPClient(n *config.NetworkConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: n.ConnectTimeoutDuration()}).DialContext
	transport.TLSHandshakeTimeout = n.ConnectTimeoutDuration()

	return &http.Client{Transport: transport}
}
