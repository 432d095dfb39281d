// Package index resolves virtual paths against the remote drive through the
// cache-aside layer and serves listings, files, search results and
// protected-subtree credentials to a rendering layer.
//
// Every remote call runs under its own timeout. A failed or timed-out call
// is never cached.
package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/tonimelisma/onedrive-index/internal/cache"
	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/protect"
	"github.com/tonimelisma/onedrive-index/internal/vpath"
)

// Defaults applied by NewService to zero Config fields.
const (
	DefaultExpires       = 5 * time.Minute
	DefaultPageSize      = 50
	DefaultInlineMaxSize = 5 << 20
	DefaultRemoteTimeout = 30 * time.Second
	DefaultCredentialTTL = 60 * time.Minute
)

// RemoteStorage is the part of the drive API the index consumes.
// *graph.Client satisfies it.
type RemoteStorage interface {
	GetItemByPath(ctx context.Context, remotePath string) (*graph.Item, error)
	ListChildrenByPath(ctx context.Context, remotePath string) (graph.Children, error)
	GetThumbnail(ctx context.Context, itemID, size string) (*graph.Thumbnail, error)
	Search(ctx context.Context, rootPath, keyword string) (graph.Children, error)
	ItemPath(ctx context.Context, itemID string) (string, error)
	FetchContent(ctx context.Context, downloadURL string, limit int64) ([]byte, error)
}

// Config tunes a Service.
type Config struct {
	Root              string
	Expires           time.Duration
	PageSize          int
	InlineMaxSize     int64
	RemoteTimeout     time.Duration
	CredentialTTL     time.Duration
	ThumbnailFallback string
}

// Viewer identifies who is asking. Authenticated viewers (site owners) see
// control files; SessionID scopes protected-subtree credentials.
type Viewer struct {
	SessionID     string
	Authenticated bool
}

// Service is the index core. It is safe for concurrent use; it holds no
// mutable state of its own.
type Service struct {
	remote   RemoteStorage
	aside    *cache.Aside
	sessions cache.Store
	guard    *protect.Guard
	paths    *vpath.Translator
	cfg      Config
	logger   *slog.Logger
}

// NewService wires a Service. sessions backs per-session credential
// storage. It may be the cache store itself when that store never evicts
// live entries; a bounded LRU would drop credentials under listing load.
func NewService(remote RemoteStorage, aside *cache.Aside, sessions cache.Store,
	guard *protect.Guard, cfg Config, logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Expires <= 0 {
		cfg.Expires = DefaultExpires
	}

	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}

	if cfg.InlineMaxSize <= 0 {
		cfg.InlineMaxSize = DefaultInlineMaxSize
	}

	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}

	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = DefaultCredentialTTL
	}

	return &Service{
		remote:   remote,
		aside:    aside,
		sessions: sessions,
		guard:    guard,
		paths:    vpath.NewTranslator(cfg.Root),
		cfg:      cfg,
		logger:   logger,
	}
}

// Config returns the effective configuration, defaults applied.
func (s *Service) Config() Config {
	return s.cfg
}

// remoteCall runs fn under the configured remote timeout.
func remoteCall[T any](ctx context.Context, s *Service, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	defer cancel()

	return fn(ctx)
}

// origin decodes an encoded request path and applies the storage root. It
// is called once per public entry point; helpers below it take clean.
func (s *Service) origin(virtual string) (clean, origin string, err error) {
	clean, err = vpath.Normalize(virtual)
	if err != nil {
		return "", "", err
	}

	origin, err = s.paths.OriginPath(clean)
	if err != nil {
		return "", "", err
	}

	return clean, origin, nil
}
