// Package pricecache fronts the resolver with a single-slot TTL cache so
// providers are not hammered more than once per TTL, even when they are down.
package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/metrics"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/resolver"
)

// DefaultTTL matches the exchange-rate-class freshness window.
const DefaultTTL = time.Hour

// TableResolver produces a fresh price table on cache miss.
type TableResolver interface {
	Resolve(ctx context.Context) (pricing.PriceTable, resolver.Outcome)
}

// Cache holds one whole-table snapshot guarded by a single mutex. Holding the
// lock across a refresh means concurrent callers share a single resolution.
type Cache struct {
	mu        sync.Mutex
	resolver  TableResolver
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	table     pricing.PriceTable
	fetchedAt time.Time
	outcome   resolver.Outcome
	primed    bool
}

// New constructs a Cache over the given resolver.
func New(res TableResolver, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		resolver: res,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With().Str("component", "price_cache").Logger(),
	}
}

// Get returns the cached table when fresh, otherwise resolves and stores a new
// one. Fallback results are cached too: a full provider outage must not turn
// every caller into a fresh round of failing requests.
func (c *Cache) Get(ctx context.Context) (pricing.PriceTable, resolver.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.primed && c.now().Sub(c.fetchedAt) < c.ttl {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return c.table, c.outcome
	}

	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return c.refreshLocked(ctx)
}

// Refresh bypasses the TTL check and forces a new resolution.
func (c *Cache) Refresh(ctx context.Context) (pricing.PriceTable, resolver.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) (pricing.PriceTable, resolver.Outcome) {
	// The refresh outlives any single caller: a disconnected client must not
	// turn an otherwise healthy resolution into an hour of cached fallback.
	table, outcome := c.resolver.Resolve(context.WithoutCancel(ctx))

	c.table = table
	c.fetchedAt = c.now()
	c.outcome = outcome
	c.primed = true

	c.logger.Debug().
		Str("source", table.Source).
		Str("outcome", string(outcome)).
		Time("fetched_at", c.fetchedAt).
		Msg("price table cached")

	return table, outcome
}
