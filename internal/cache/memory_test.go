package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestMemory(t *testing.T, maxEntries int) (*Memory, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(maxEntries, 0)
	c.nowFunc = func() time.Time { return now }
	t.Cleanup(func() { c.Close() })
	return c, &now
}

func TestMemory_GetSet(t *testing.T) {
	c, _ := newTestMemory(t, 10)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestMemory_TTLExpiry(t *testing.T) {
	c, now := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Minute))

	*now = now.Add(4*time.Minute + 59*time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	*now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestMemory_LRUEviction(t *testing.T) {
	c, _ := newTestMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	// Touch a so b becomes the least recently used.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemory_OverwriteAndDelete(t *testing.T) {
	c, _ := newTestMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "a", []byte("2"), time.Minute))
	assert.Equal(t, 1, c.Stats().Entries)

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "never-set"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Sweep(t *testing.T) {
	c, now := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, c.sweep())
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestMemory_JanitorStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemory(10, time.Millisecond)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Nanosecond))

	assert.Eventually(t, func() bool { return c.Stats().Entries == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	c, _ := newTestMemory(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i+j)%80)
				_ = c.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Stats().Entries, 50)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "beste kopfhörer_www.amazon.de", Key("  Beste Kopfhörer ", "www.amazon.de"))
}

func TestJSONHelpers(t *testing.T) {
	c, _ := newTestMemory(t, 10)
	ctx := context.Background()

	type payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, SetJSON(ctx, c, "p", payload{Message: "hallo"}, time.Minute))

	var got payload
	require.NoError(t, GetJSON(ctx, c, "p", &got))
	assert.Equal(t, "hallo", got.Message)

	assert.ErrorIs(t, GetJSON(ctx, c, "absent", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "bad", []byte("{"), time.Minute))
	err := GetJSON(ctx, c, "bad", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode bad")
}
