// Package session scopes a shared cache.Store to one session ID, so values a
// session writes are invisible to every other session.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/onedrive-index/internal/cache"
)

// ErrNoSession is returned when a Store is requested with an empty ID.
var ErrNoSession = errors.New("session: empty session id")

// DefaultTTL bounds how long session keys live in the backing store.
const DefaultTTL = 24 * time.Hour

// Store is a key-value view of one session.
type Store struct {
	backing cache.Store
	id      string
	ttl     time.Duration
}

// NewID mints a fresh random session ID.
func NewID() string {
	return uuid.NewString()
}

// Open returns the view of backing for session id.
func Open(backing cache.Store, id string) (*Store, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNoSession
	}

	return &Store{backing: backing, id: id, ttl: DefaultTTL}, nil
}

// ID returns the session ID.
func (s *Store) ID() string {
	return s.id
}

// Put stores value under key. A ttl <= 0 uses DefaultTTL; session data is
// never kept forever.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}

	return s.backing.Put(ctx, s.key(key), value, ttl)
}

// Get returns the value under key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.backing.Get(ctx, s.key(key))
}

// Delete removes key from the session.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backing.Delete(ctx, s.key(key))
}

func (s *Store) key(k string) string {
	return "session:" + s.id + ":" + k
}
