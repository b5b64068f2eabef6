package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clockAt pins the cache clock to a controllable instant.
func clockAt(c *Cache, t time.Time) func(d time.Duration) {
	current := t
	c.now = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c := New(10, time.Minute)

	v, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestSetThenGet(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
}

func TestSetRefreshesExistingKey(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("a", 1)
	c.Set("a", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := New(5, time.Minute)

	for i := 0; i < 7; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		assert.LessOrEqual(t, c.Len(), 5)
	}

	stats := c.Stats()
	assert.Equal(t, 5, stats.Size)
	assert.Equal(t, uint64(2), stats.Evictions)

	// The two oldest entries were evicted, the rest survived.
	for i := 0; i < 2; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.False(t, ok, "k%d should be evicted", i)
	}
	for i := 2; i < 7; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok, "k%d should survive", i)
	}
}

func TestGetPromotesEntry(t *testing.T) {
	c := New(3, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok, "b was LRU and should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	_, ok = c.Get("d")
	assert.True(t, ok)
}

func TestSetPromotesExistingEntry(t *testing.T) {
	c := New(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // refresh promotes "a", leaving "b" as LRU
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 300*time.Second)
	advance := clockAt(c, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	c.Set("a", 1)

	advance(299 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok, "entry within TTL")

	advance(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry past TTL")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestSetRefreshResetsTTL(t *testing.T) {
	c := New(10, time.Minute)
	advance := clockAt(c, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	c.Set("a", 1)
	advance(50 * time.Second)
	c.Set("a", 2)
	advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok, "refresh restarted the TTL clock")
	assert.Equal(t, 2, v)
}

func TestDelete(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"), "second delete reports absence")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Hits, "counters survive Clear")

	// The cache stays usable after Clear.
	c.Set("c", 3)
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestInvalidatePattern(t *testing.T) {
	c := New(10, time.Minute)

	c.Set("patients:all", []string{"p1"})
	c.Set("patient:p1", "p1")
	c.Set("providers:all", []string{"d1"})

	n := c.InvalidatePattern("patient")
	assert.Equal(t, 2, n)

	_, ok := c.Get("patients:all")
	assert.False(t, ok)
	_, ok = c.Get("patient:p1")
	assert.False(t, ok)
	_, ok = c.Get("providers:all")
	assert.True(t, ok, "non-matching key untouched")
}

func TestInvalidatePatternNoMatches(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("a", 1)

	assert.Equal(t, 0, c.InvalidatePattern("zzz"))
	assert.Equal(t, 1, c.Len())
}

func TestCleanupExpired(t *testing.T) {
	c := New(10, time.Minute)
	advance := clockAt(c, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	c.Set("old1", 1)
	c.Set("old2", 2)
	advance(2 * time.Minute)
	c.Set("fresh", 3)

	assert.Equal(t, 2, c.CleanupExpired())
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestStatsSnapshot(t *testing.T) {
	c := New(5, time.Minute)

	c.Set("a", 1)
	c.Get("a")    // hit
	c.Get("b")    // miss
	c.Get("c")    // miss
	c.Set("b", 2)

	got := c.Stats()
	want := Stats{
		Size:      2,
		Capacity:  5,
		Hits:      1,
		Misses:    2,
		Evictions: 0,
		HitRate:   1.0 / 3.0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestArenaSlotReuse(t *testing.T) {
	c := New(3, time.Minute)

	// Churn well past capacity; the arena must not grow beyond the
	// capacity worth of slots.
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	assert.LessOrEqual(t, len(c.arena), 3)
	assert.Equal(t, 3, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(100, time.Minute)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i%20)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.InvalidatePattern(fmt.Sprintf("w%d", w))
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
