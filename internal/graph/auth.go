package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/tonimelisma/onedrive-index/internal/tokenfile"
)

// ErrNotLoggedIn is returned when no token file exists at the configured path.
var ErrNotLoggedIn = errors.New("graph: no saved token")

// defaultTenant is used when the token file does not name one.
const defaultTenant = "common"

var defaultScopes = []string{"offline_access", "Files.Read.All"}

// TokenSourceFromPath loads a saved token and returns a TokenSource that
// refreshes through golang.org/x/oauth2 and writes refreshed tokens back to
// tokenPath. clientID overrides the one stored in the token file's metadata.
//
// ctx must outlive the TokenSource; refreshes use it.
func TokenSourceFromPath(ctx context.Context, tokenPath, clientID string, logger *slog.Logger) (TokenSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tok, meta, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	if clientID == "" {
		clientID = meta[tokenfile.MetaClientID]
	}

	tenant := meta[tokenfile.MetaTenant]
	if tenant == "" {
		tenant = defaultTenant
	}

	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())),
	)

	cfg := &oauth2.Config{
		ClientID: clientID,
		Scopes:   defaultScopes,
		Endpoint: microsoft.AzureADEndpoint(tenant),
	}

	return &tokenBridge{
		src:    cfg.TokenSource(ctx, tok),
		path:   tokenPath,
		meta:   meta,
		last:   tok.AccessToken,
		logger: logger,
	}, nil
}

// tokenBridge adapts oauth2.TokenSource to graph.TokenSource and persists
// the token whenever the library has refreshed it.
type tokenBridge struct {
	src    oauth2.TokenSource
	path   string
	meta   map[string]string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (b *tokenBridge) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("graph: obtaining token: %w", err)
	}

	b.mu.Lock()
	refreshed := t.AccessToken != b.last
	b.last = t.AccessToken
	b.mu.Unlock()

	if refreshed {
		b.logger.Info("token refreshed", slog.Time("new_expiry", t.Expiry))

		if saveErr := tokenfile.Save(b.path, t, b.meta); saveErr != nil {
			b.logger.Warn("failed to persist refreshed token",
				slog.String("path", b.path),
				slog.String("error", saveErr.Error()),
			)
		}
	}

	return t.AccessToken, nil
}
