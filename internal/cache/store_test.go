package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyBackend wraps a MemoryBackend and fails selected operations.
type flakyBackend struct {
	*MemoryBackend
	failGet    map[string]bool
	failSet    map[string]bool
	failDelete map[string]bool
}

var errBackendDown = errors.New("backend down")

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{
		MemoryBackend: NewMemoryBackend(100, nil),
		failGet:       map[string]bool{},
		failSet:       map[string]bool{},
		failDelete:    map[string]bool{},
	}
}

func (b *flakyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.failGet[key] {
		return nil, errBackendDown
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.failSet[key] {
		return errBackendDown
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

func (b *flakyBackend) Delete(ctx context.Context, key string) error {
	if b.failDelete[key] {
		return errBackendDown
	}
	return b.MemoryBackend.Delete(ctx, key)
}

func (b *flakyBackend) has(t *testing.T, key string) bool {
	t.Helper()
	_, err := b.MemoryBackend.Get(context.Background(), key)
	return err == nil
}

func newTestStore(b Backend, clock *fakeClock) *Store {
	return NewStore(b, WithClock(clock.Now), WithTTL(time.Hour))
}

func TestStore_SetGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	b := newFlakyBackend()
	s := newTestStore(b, clock)

	require.True(t, s.Set(ctx, "k", []byte("v")))

	marker, err := b.MemoryBackend.Get(ctx, "k/ttl")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(clock.Now().Unix(), 10), string(marker))

	got, ok := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	b := newFlakyBackend()
	s := newTestStore(b, clock)

	require.True(t, s.Set(ctx, "k", []byte("v")))

	clock.Advance(time.Hour)
	_, ok := s.Get(ctx, "k")
	assert.True(t, ok, "an entry exactly ttl old is still fresh")

	clock.Advance(time.Second)
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, b.has(t, "k"))
	assert.False(t, b.has(t, "k/ttl"))
}

func TestStore_RepairsMissingMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	b := newFlakyBackend()
	s := newTestStore(b, clock)

	require.NoError(t, b.MemoryBackend.Set(ctx, "k", []byte("v")))

	got, ok := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	require.True(t, b.has(t, "k/ttl"))

	// The repaired marker starts a full TTL from the read.
	clock.Advance(time.Hour)
	_, ok = s.Get(ctx, "k")
	assert.True(t, ok)
	clock.Advance(time.Second)
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStore_RemovesOrphanMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	b := newFlakyBackend()
	s := newTestStore(b, clock)

	require.NoError(t, b.MemoryBackend.Set(ctx, "k/ttl", []byte("1700000000")))

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, b.has(t, "k/ttl"))
}

func TestStore_UnreadableMarkerTreatedAsExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newFlakyBackend()
	s := newTestStore(b, newFakeClock())

	require.NoError(t, b.MemoryBackend.Set(ctx, "k", []byte("v")))
	require.NoError(t, b.MemoryBackend.Set(ctx, "k/ttl", []byte{0x01, 0x02, 0x03, 0x04}))

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, b.has(t, "k"))
	assert.False(t, b.has(t, "k/ttl"))
}

func TestStore_BothAbsent(t *testing.T) {
	t.Parallel()

	s := newTestStore(newFlakyBackend(), newFakeClock())
	v, ok := s.Get(context.Background(), "missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestStore_BackendErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("get value", func(t *testing.T) {
		b := newFlakyBackend()
		s := newTestStore(b, newFakeClock())
		require.True(t, s.Set(ctx, "k", []byte("v")))
		b.failGet["k"] = true

		_, ok := s.Get(ctx, "k")
		assert.False(t, ok)
		assert.True(t, b.has(t, "k"), "a read error must not delete anything")
	})

	t.Run("get marker", func(t *testing.T) {
		b := newFlakyBackend()
		s := newTestStore(b, newFakeClock())
		require.True(t, s.Set(ctx, "k", []byte("v")))
		b.failGet["k/ttl"] = true

		_, ok := s.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("set value", func(t *testing.T) {
		b := newFlakyBackend()
		s := newTestStore(b, newFakeClock())
		b.failSet["k"] = true

		assert.False(t, s.Set(ctx, "k", []byte("v")))
		assert.False(t, b.has(t, "k/ttl"))
	})

	t.Run("set marker", func(t *testing.T) {
		b := newFlakyBackend()
		s := newTestStore(b, newFakeClock())
		b.failSet["k/ttl"] = true

		assert.False(t, s.Set(ctx, "k", []byte("v")))
		assert.True(t, b.has(t, "k"), "no rollback of the value")
	})

	t.Run("delete", func(t *testing.T) {
		b := newFlakyBackend()
		s := newTestStore(b, newFakeClock())
		require.True(t, s.Set(ctx, "k", []byte("v")))
		b.failDelete["k"] = true

		assert.False(t, s.Delete(ctx, "k"))
		assert.False(t, b.has(t, "k/ttl"), "the marker is still removed")
	})
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newFlakyBackend()
	s := newTestStore(b, newFakeClock())

	require.True(t, s.Set(ctx, "k", []byte("v")))
	assert.True(t, s.Delete(ctx, "k"))
	assert.False(t, b.has(t, "k"))
	assert.False(t, b.has(t, "k/ttl"))

	assert.True(t, s.Delete(ctx, "never-set"))
}

func TestNewStore_Defaults(t *testing.T) {
	t.Parallel()

	b := NewMemoryBackend(1, nil)
	s := NewStore(b, WithTTL(0), WithClock(nil), WithLogger(nil))
	assert.Equal(t, DefaultTTL, s.TTL())
	assert.Same(t, b, s.Backend())
	assert.Equal(t, "a/ttl", MarkerKey("a"))
}
