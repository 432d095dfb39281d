package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract exercises the behavior every backend shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()

	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", []byte("v1"), time.Hour))
	require.NoError(t, s.Put(ctx, "k", []byte("v2"), time.Hour))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(got))

	has, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Put(ctx, "forever", []byte("x"), 0))

	has, err = s.Has(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	has, err = s.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryStore(t *testing.T) {
	s, err := NewMemoryStore(0)
	require.NoError(t, err)

	storeContract(t, s)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	s, err := NewMemoryStore(10)
	require.NoError(t, err)
	s.nowFunc = clock.Now

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))

	clock.Advance(59 * time.Second)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry is dropped on read")
}

func TestMemoryStore_Eviction(t *testing.T) {
	ctx := context.Background()

	s, err := NewMemoryStore(2)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Put(ctx, "b", []byte("2"), 0))
	require.NoError(t, s.Put(ctx, "c", []byte("3"), 0))

	has, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has, "least recently used entry evicted")
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_PutCopiesValue(t *testing.T) {
	ctx := context.Background()

	s, err := NewMemoryStore(1)
	require.NoError(t, err)

	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache.db"), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, newTestSQLiteStore(t))
}

func TestSQLiteStore_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	s := newTestSQLiteStore(t)
	s.nowFunc = clock.Now

	require.NoError(t, s.Put(ctx, "short", []byte("v"), time.Minute))
	require.NoError(t, s.Put(ctx, "long", []byte("v"), time.Hour))
	require.NoError(t, s.Put(ctx, "forever", []byte("v"), 0))

	clock.Advance(2 * time.Minute)

	_, ok, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(2 * time.Hour)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the hour-long entry remained to purge")

	has, err := s.Has(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLiteStore(ctx, path, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("persisted"), 0))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path, testLogger(t))
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", string(got))
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), "", testLogger(t))
	assert.Error(t, err)
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreWithClient(client, "test:"), mr
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestRedisStore(t)
	storeContract(t, s)
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Put(ctx, "hello", []byte("world"), time.Minute))
	assert.Contains(t, mr.Keys(), "test:hello")
	assert.Equal(t, time.Minute, mr.TTL("test:hello"))

	mr.FastForward(61 * time.Second)

	_, ok, err := s.Get(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	s := NewRedisStoreWithClient(nil, "")
	assert.Equal(t, DefaultRedisPrefix+"k", s.prefixed("k"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{}, testLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "c.db")}, testLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Options{Backend: BackendRedis, Redis: RedisOptions{Addr: mr.Addr()}}, testLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: "memcached"}, testLogger(t))
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
