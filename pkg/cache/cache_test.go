package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/pkg/cache"
)

func TestMemory_GetSetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory[string]()
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory[int]()

	require.NoError(t, c.Set(ctx, "short", 1, 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", 2, -1))

	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	v, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMemory_Sweep(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[int](cache.WithCleanupInterval(5 * time.Millisecond))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set(context.Background(), "k", 1, time.Millisecond))
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemory_LRU(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory[int](cache.WithMaxEntries(2))

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "c", 3, 0))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestMemory_ClearAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory[int]()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Set(ctx, "a", 1, 0), cache.ErrClosed)
}

func TestGetOrSet_SingleFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory[string]()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, time.Duration, error) {
		calls.Add(1)
		<-release
		return "built", 0, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrSet(ctx, c, "k", fn)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "built", v)
	}

	v, err := cache.GetOrSet(ctx, c, "k", fn)
	require.NoError(t, err)
	assert.Equal(t, "built", v)
	assert.Equal(t, int32(1), calls.Load())
	before := calls.Load()
	_, _ = cache.GetOrSet(ctx, c, "k", fn)
	assert.Equal(t, before, calls.Load())
}

func TestGetOrSet_Error(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory[int]()
	boom := errors.New("boom")

	_, err := cache.GetOrSet(ctx, c, "k", func(context.Context) (int, time.Duration, error) {
		return 0, 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestJSONCodec(t *testing.T) {
	t.Parallel()

	type manifest struct {
		Entry string `json:"entry"`
	}
	codec := cache.JSON[*manifest]{}

	data, err := codec.Encode(&manifest{Entry: "entry.js"})
	require.NoError(t, err)
	m, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "entry.js", m.Entry)

	_, err = codec.Decode([]byte("{"))
	assert.ErrorIs(t, err, cache.ErrDecode)
}
