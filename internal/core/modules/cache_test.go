package modules

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataui/strata/internal/core/world"
)

func TestCacheGetInsideTTL(t *testing.T) {
	c := newActivationCache(time.Minute, 10)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Put("home-1", world.EntityID(7), now)

	got, ok := c.Get("home-1", now.Add(59*time.Second))
	require.True(t, ok)
	assert.Equal(t, world.EntityID(7), got)
}

func TestCacheExpiryDropsEntry(t *testing.T) {
	c := newActivationCache(time.Minute, 10)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Put("home-1", world.EntityID(7), now)

	_, ok := c.Get("home-1", now.Add(time.Minute))
	assert.False(t, ok, "entry at exactly TTL is expired")
	assert.Equal(t, 0, c.Len(), "expired entry dropped on lookup")
}

func TestCacheTouchExtendsLifetime(t *testing.T) {
	c := newActivationCache(time.Minute, 10)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Put("home-1", world.EntityID(7), now)
	c.Touch("home-1", now.Add(50*time.Second))

	_, ok := c.Get("home-1", now.Add(100*time.Second))
	assert.True(t, ok)
}

func TestCacheEvictsOldestDownToMaxSize(t *testing.T) {
	c := newActivationCache(time.Hour, 3)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("mod%d-1", i)
		c.Put(key, world.EntityID(i+1), now.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 3, c.Len(), "cache holds exactly maxSize after eviction")
	for i := 0; i < 2; i++ {
		_, ok := c.Get(fmt.Sprintf("mod%d-1", i), now.Add(time.Minute))
		assert.False(t, ok, "oldest entries evicted first")
	}
	for i := 2; i < 5; i++ {
		_, ok := c.Get(fmt.Sprintf("mod%d-1", i), now.Add(time.Minute))
		assert.True(t, ok)
	}
}

func TestCacheRemoveInstance(t *testing.T) {
	c := newActivationCache(time.Hour, 10)
	now := time.Now()

	c.Put("a-1", world.EntityID(5), now)
	c.Put("a-2", world.EntityID(5), now)
	c.Put("b-1", world.EntityID(6), now)

	c.RemoveInstance(world.EntityID(5))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b-1", now)
	assert.True(t, ok)
}
