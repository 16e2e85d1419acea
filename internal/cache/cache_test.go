package cache

import (
	"sync"
	"sync/atomic"
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
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	store := New[int](5*time.Minute, WithClock[int](clock.Now))

	calls := 0
	compute := func() (int, bool) {
		calls++
		return 42, true
	}

	v, ok := store.GetOrCompute("key", compute)
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	// Second read within the TTL serves the cached value
	clock.Advance(299 * time.Second)
	v, ok = store.GetOrCompute("key", compute)
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeRecomputesAfterTTL(t *testing.T) {
	clock := newFakeClock()
	store := New[int](300*time.Second, WithClock[int](clock.Now))

	calls := 0
	compute := func() (int, bool) {
		calls++
		return calls, true
	}

	v, _ := store.GetOrCompute("key", compute)
	assert.Equal(t, 1, v)

	// Exactly at the TTL boundary the entry is stale
	clock.Advance(300 * time.Second)
	v, _ = store.GetOrCompute("key", compute)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeDoesNotCacheFailures(t *testing.T) {
	store := New[string](time.Minute)

	calls := 0
	failing := func() (string, bool) {
		calls++
		return "", false
	}

	_, ok := store.GetOrCompute("key", failing)
	assert.False(t, ok)
	_, ok = store.GetOrCompute("key", failing)
	assert.False(t, ok)
	assert.Equal(t, 2, calls, "failed computes must be retried, not cached")
	assert.Equal(t, 0, store.Len())
}

func TestInvalidate(t *testing.T) {
	store := New[int](time.Minute)

	calls := 0
	compute := func() (int, bool) {
		calls++
		return calls, true
	}

	store.GetOrCompute("key", compute)
	store.Invalidate("key")

	v, _ := store.GetOrCompute("key", compute)
	assert.Equal(t, 2, v)
}

func TestPurge(t *testing.T) {
	clock := newFakeClock()
	store := New[int](time.Minute, WithClock[int](clock.Now))

	store.GetOrCompute("old", func() (int, bool) { return 1, true })
	clock.Advance(30 * time.Second)
	store.GetOrCompute("fresh", func() (int, bool) { return 2, true })

	clock.Advance(31 * time.Second)
	removed := store.Purge()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	// The fresh entry is still served
	v, ok := store.GetOrCompute("fresh", func() (int, bool) { return 99, true })
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestWithCloneProtectsCachedValue(t *testing.T) {
	store := New[[]int](time.Minute, WithClone[[]int](func(v []int) []int {
		out := make([]int, len(v))
		copy(out, v)
		return out
	}))

	first, _ := store.GetOrCompute("key", func() ([]int, bool) {
		return []int{1, 2, 3}, true
	})
	first[0] = 99

	second, _ := store.GetOrCompute("key", func() ([]int, bool) {
		t.Fatal("compute must not run on a fresh entry")
		return nil, false
	})
	assert.Equal(t, []int{1, 2, 3}, second)
}

func TestConcurrentLookupsCoalesce(t *testing.T) {
	store := New[int](time.Minute)

	var calls int32
	compute := func() (int, bool) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return 7, true
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := store.GetOrCompute("key", compute)
			assert.True(t, ok)
			assert.Equal(t, 7, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestKeysAreIndependent(t *testing.T) {
	store := New[string](time.Minute)

	a, _ := store.GetOrCompute("a", func() (string, bool) { return "alpha", true })
	b, _ := store.GetOrCompute("b", func() (string, bool) { return "beta", true })
	assert.Equal(t, "alpha", a)
	assert.Equal(t, "beta", b)

	store.Invalidate("a")
	b, ok := store.GetOrCompute("b", func() (string, bool) { return "gamma", true })
	require.True(t, ok)
	assert.Equal(t, "beta", b, "invalidating one key must not touch others")
}
