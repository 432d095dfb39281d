package graph

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/onedrive-index/internal/tokenfile"
)

func TestTokenSourceFromPath_NotLoggedIn(t *testing.T) {
	_, err := TokenSourceFromPath(context.Background(), filepath.Join(t.TempDir(), "none.json"), "", nil)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestTokenSourceFromPath_ValidToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenfile.Save(path, &oauth2.Token{
		AccessToken: "still-valid",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}, map[string]string{tokenfile.MetaClientID: "app"}))

	ts, err := TokenSourceFromPath(context.Background(), path, "", slog.Default())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "still-valid", tok)
}

// rotatingSource hands out a new access token on every call.
type rotatingSource struct {
	n   int
	err error
}

func (r *rotatingSource) Token() (*oauth2.Token, error) {
	if r.err != nil {
		return nil, r.err
	}

	r.n++

	return &oauth2.Token{AccessToken: "tok-" + string(rune('0'+r.n)), Expiry: time.Now().Add(time.Hour)}, nil
}

func TestTokenBridge_PersistsRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	b := &tokenBridge{
		src:    &rotatingSource{},
		path:   path,
		meta:   map[string]string{tokenfile.MetaTenant: "consumers"},
		last:   "tok-0",
		logger: slog.Default(),
	}

	got, err := b.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	saved, meta, err := tokenfile.Load(path)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "tok-1", saved.AccessToken)
	assert.Equal(t, "consumers", meta[tokenfile.MetaTenant])
}

func TestTokenBridge_Error(t *testing.T) {
	b := &tokenBridge{src: &rotatingSource{err: errors.New("refresh denied")}, logger: slog.Default()}

	_, err := b.Token()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh denied")
}
