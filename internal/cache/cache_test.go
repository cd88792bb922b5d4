package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alephium-gateway/internal/kvstore"
)

func TestCache_WriteThroughAndPromotion(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()

	c1 := New[string]("test_", 0, store, nil)
	c1.Set(ctx, "k", "v")

	// A second cache instance over the same store simulates a restart:
	// the memory tier is empty, the persistent tier hydrates it.
	c2 := New[string]("test_", 0, store, nil)
	v, ok := c2.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	// Promotion: value must now be served from memory even if the
	// persistent tier disappears.
	require.NoError(t, store.Delete(ctx, "test_k"))
	v, ok = c2.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCache_IndefiniteTTLNeverExpires(t *testing.T) {
	c := New[int]("test_", 0, nil, nil)
	ctx := context.Background()

	c.Set(ctx, "k", 42)
	c.nowFn = func() time.Time { return time.Now().Add(1000 * time.Hour) }

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCache_FreshnessBoundaryIsStale(t *testing.T) {
	const window = 30 * time.Minute
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := New[int]("test_", window, kvstore.NewMemory(), nil)
	ctx := context.Background()

	c.nowFn = func() time.Time { return base }
	c.Set(ctx, "k", 7)

	// One millisecond before the boundary: still fresh.
	c.nowFn = func() time.Time { return base.Add(window - time.Millisecond) }
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	// Exactly at the boundary: treated as a miss.
	c.nowFn = func() time.Time { return base.Add(window) }
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

// failingStore simulates a persistent tier that rejects every write.
type failingStore struct {
	kvstore.Store
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	return errors.New("quota exceeded")
}

func TestCache_PersistentWriteFailureDoesNotFailSet(t *testing.T) {
	c := New[string]("test_", 0, &failingStore{Store: kvstore.NewMemory()}, nil)
	ctx := context.Background()

	c.Set(ctx, "k", "v")

	// Memory tier stays authoritative for the session.
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCache_ClearAllAndSelective(t *testing.T) {
	store := kvstore.NewMemory()
	c := New[int]("test_", 0, store, nil)
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	c.Clear(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)

	c.Clear(ctx)
	stats := c.Stats(ctx)
	assert.Equal(t, 0, stats.Count)

	keys, err := store.Keys(ctx, "test_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCache_Stats(t *testing.T) {
	c := New[int]("test_", 0, kvstore.NewMemory(), nil)
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	stats := c.Stats(ctx)
	assert.Equal(t, 2, stats.Count)
	assert.ElementsMatch(t, []string{"a", "b"}, stats.Keys)
}
