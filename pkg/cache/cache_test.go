package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_BasicOperations(t *testing.T) {
	c, err := NewLRU[string](3)
	require.NoError(t, err)
	defer c.Close()

	created, err := c.Set("a", "alpha")
	require.NoError(t, err)
	assert.True(t, created)

	value, found := c.Get("a")
	assert.True(t, found)
	assert.Equal(t, "alpha", value)

	// Updating an existing key returns created=false
	created, err = c.Set("a", "alpha2")
	require.NoError(t, err)
	assert.False(t, created)

	value, found = c.Get("a")
	assert.True(t, found)
	assert.Equal(t, "alpha2", value)

	_, found = c.Get("missing")
	assert.False(t, found)

	deleted, err := c.Delete("a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("a")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("a", 1)
	require.NoError(t, err)
	_, err = c.Set("b", 2)
	require.NoError(t, err)

	// Touch "a" so "b" becomes least recently used
	_, found := c.Get("a")
	require.True(t, found)

	_, err = c.Set("c", 3)
	require.NoError(t, err)

	_, found = c.Get("b")
	assert.False(t, found, "least recently used entry should be evicted")
	_, found = c.Get("a")
	assert.True(t, found)
	_, found = c.Get("c")
	assert.True(t, found)
	assert.Equal(t, 2, c.Size())
}

func TestLRU_EvictionCallback(t *testing.T) {
	var evicted []string
	c, err := NewLRU[int](1, WithEvictionCallback[int](func(key string, _ int) {
		evicted = append(evicted, key)
	}))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("first", 1)
	require.NoError(t, err)
	_, err = c.Set("second", 2)
	require.NoError(t, err)

	require.Len(t, evicted, 1)
	assert.Equal(t, "first", evicted[0])
}

func TestLRU_EmptyKeyRejected(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("", 1)
	assert.Error(t, err)

	_, err = c.Delete("")
	assert.Error(t, err)
}

func TestLRU_KeysOrder(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)
	defer c.Close()

	for i, key := range []string{"a", "b", "c"} {
		_, err = c.Set(key, i)
		require.NoError(t, err)
	}

	// "a" becomes most recently used
	_, found := c.Get("a")
	require.True(t, found)

	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

func TestLRU_Stats(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("a", 1)
	require.NoError(t, err)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(2), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Sets())
	assert.InDelta(t, 2.0/3.0, stats.HitRatio(), 0.001)

	summary := stats.Summary()
	assert.Equal(t, int64(2), summary.Hits)
	assert.Equal(t, int64(1), summary.CurrentSize)
}

func TestLRU_Clear(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 5; i++ {
		_, err = c.Set(fmt.Sprintf("key%d", i), i)
		require.NoError(t, err)
	}
	require.Equal(t, 5, c.Size())

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Size())
	assert.Empty(t, c.Keys())
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c, err := NewLRU[int](100)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key%d", i%50)
				if i%3 == 0 {
					_, _ = c.Set(key, g*1000+i)
				} else {
					c.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), 100)
}

func TestNewFromConfig(t *testing.T) {
	t.Run("disabled returns noop", func(t *testing.T) {
		c, err := NewFromConfig[int](Config{Enabled: false})
		require.NoError(t, err)
		defer c.Close()

		created, err := c.Set("a", 1)
		require.NoError(t, err)
		assert.False(t, created)
		_, found := c.Get("a")
		assert.False(t, found)
		assert.Equal(t, 0, c.Size())
	})

	t.Run("invalid max size", func(t *testing.T) {
		_, err := NewFromConfig[int](Config{Enabled: true, MaxSize: 0})
		assert.Error(t, err)
	})

	t.Run("defaults validate", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, 1000, cfg.MaxSize)
	})
}
