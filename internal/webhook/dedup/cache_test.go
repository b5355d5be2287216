package dedup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/orderrelay/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(clk clock.Clock) *Cache {
	return New(Params{TTL: 24 * time.Hour, SweepInterval: time.Hour, Clock: clk})
}

func TestIsProcessedLifecycle(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := newTestCache(clk)
	key := "item.order.purchased_1001"

	assert.False(t, cache.IsProcessed(key))

	cache.MarkProcessed(key)
	assert.True(t, cache.IsProcessed(key))

	clk.Advance(24 * time.Hour)
	assert.True(t, cache.IsProcessed(key), "entry exactly at TTL is still live")

	clk.Advance(time.Second)
	assert.False(t, cache.IsProcessed(key))
	assert.Equal(t, 0, cache.Len(), "expired entry removed on lookup")
}

func TestUnrelatedKeysDoNotInterfere(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := newTestCache(clk)

	cache.MarkProcessed("order.report.issued_1")
	assert.False(t, cache.IsProcessed("order.report.issued_2"))
	cache.MarkProcessed("order.report.issued_2")
	assert.True(t, cache.IsProcessed("order.report.issued_1"))
	assert.True(t, cache.IsProcessed("order.report.issued_2"))
	assert.False(t, cache.IsProcessed("item.order.purchased_1"))
}

func TestMarkProcessedPrunesExpiredEntries(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := newTestCache(clk)

	cache.MarkProcessed("a")
	cache.MarkProcessed("b")
	clk.Advance(25 * time.Hour)
	cache.MarkProcessed("c")

	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.IsProcessed("c"))
}

func TestPruneReturnsRemovedCount(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := newTestCache(clk)

	cache.MarkProcessed("old-1")
	cache.MarkProcessed("old-2")
	clk.Advance(12 * time.Hour)
	cache.MarkProcessed("fresh")
	clk.Advance(13 * time.Hour)

	assert.Equal(t, 2, cache.Prune())
	assert.Equal(t, 0, cache.Prune())
	assert.Equal(t, 1, cache.Len())
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := New(Params{TTL: time.Hour, SweepInterval: 5 * time.Millisecond, Clock: clk})

	cache.MarkProcessed("a")
	clk.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}
}

func TestConcurrentAccess(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := newTestCache(clk)

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("item.order.purchased_%d", worker*1000+i)
				cache.MarkProcessed(key)
				_ = cache.IsProcessed(key)
				if i%50 == 0 {
					cache.Prune()
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1600, cache.Len())
}

func TestNewAppliesDefaults(t *testing.T) {
	cache := New(Params{})
	assert.Equal(t, DefaultTTL, cache.ttl)
	assert.Equal(t, DefaultSweepInterval, cache.interval)
	assert.NotNil(t, cache.clock)
}
