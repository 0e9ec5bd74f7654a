package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPutWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New[[]int](30 * time.Second)

	_, ok := c.Get("AAPL", now)
	assert.False(t, ok)

	c.Put("AAPL", []int{1, 2}, now)
	v, ok := c.Get("AAPL", now.Add(29*time.Second))
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, v)
}

func TestGetExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New[string](30 * time.Second)
	c.Put("k", "v", now)

	_, ok := c.Get("k", now.Add(30*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.CachedAt("k"))
}

func TestDefaultTTL(t *testing.T) {
	now := time.Now()
	c := New[int](0)
	c.Put("k", 1, now)
	_, ok := c.Get("k", now.Add(DefaultTTL-time.Millisecond))
	assert.True(t, ok)
	require.NotNil(t, c.CachedAt("k"))
	assert.True(t, c.CachedAt("k").Equal(now))
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put("k", i, now)
			c.Get("k", now)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
