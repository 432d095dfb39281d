package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize bounds the in-memory store when no size is configured.
const DefaultMemorySize = 4096

// MemoryStore is a bounded LRU with per-entry expiry. Expired entries are
// dropped lazily when read.
type MemoryStore struct {
	entries *lru.Cache[string, memoryEntry]
	nowFunc func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore returns a MemoryStore holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}

	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: creating lru: %w", err)
	}

	return &MemoryStore{entries: entries, nowFunc: time.Now}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}

	if expired(m.nowFunc(), e.expiresAt) {
		m.entries.Remove(key)
		return nil, false, nil
	}

	return e.value, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	// Copy so callers can reuse their buffer.
	v := make([]byte, len(value))
	copy(v, value)

	m.entries.Add(key, memoryEntry{value: v, expiresAt: expiry(m.nowFunc(), ttl)})

	return nil
}

func (m *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// Len reports the number of resident entries, expired ones included.
func (m *MemoryStore) Len() int {
	return m.entries.Len()
}

func (m *MemoryStore) Close() error {
	m.entries.Purge()
	return nil
}
