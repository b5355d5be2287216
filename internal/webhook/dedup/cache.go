package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/orderrelay/internal/clock"
	obsmetrics "github.com/smallbiznis/orderrelay/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

type Params struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
	Log           *zap.Logger
	Metrics       *obsmetrics.RelayMetrics
}

// Cache remembers the time each event key was first processed successfully.
// Entries older than the TTL are dropped lazily on lookup, after every mark,
// and by the periodic sweep in Run.
type Cache struct {
	ttl      time.Duration
	interval time.Duration
	clock    clock.Clock
	log      *zap.Logger
	metrics  *obsmetrics.RelayMetrics

	mu    sync.RWMutex
	items map[string]time.Time
}

func New(p Params) *Cache {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	interval := p.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		ttl:      ttl,
		interval: interval,
		clock:    clk,
		log:      log.Named("webhook.dedup"),
		metrics:  p.Metrics,
		items:    make(map[string]time.Time),
	}
}

// IsProcessed reports whether key was marked within the TTL. An expired entry
// is removed before returning false.
func (c *Cache) IsProcessed(key string) bool {
	c.mu.RLock()
	ts, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	now := c.clock.Now()
	if !c.expired(now, ts) {
		return true
	}

	c.mu.Lock()
	// A concurrent mark may have refreshed the entry since the read.
	if current, ok := c.items[key]; ok && c.expired(now, current) {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()
	c.metrics.SetDedupEntries(size)
	return false
}

// MarkProcessed records key as processed now and prunes expired entries.
func (c *Cache) MarkProcessed(key string) {
	c.mu.Lock()
	c.items[key] = c.clock.Now()
	c.mu.Unlock()

	c.Prune()
}

// Prune removes every expired entry and returns how many were removed.
func (c *Cache) Prune() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := 0
	for key, ts := range c.items {
		if c.expired(now, ts) {
			delete(c.items, key)
			removed++
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.AddDedupPruned(removed)
	c.metrics.SetDedupEntries(size)
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Run sweeps expired entries every sweep interval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("dedup sweep panicked", zap.Any("panic", r))
		}
	}()

	if removed := c.Prune(); removed > 0 {
		c.log.Debug("dedup sweep removed expired entries",
			zap.Int("removed", removed),
			zap.Int("remaining", c.Len()),
		)
	}
}

func (c *Cache) expired(now, ts time.Time) bool {
	return now.Sub(ts) > c.ttl
}
