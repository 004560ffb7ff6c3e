package exchange

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"pumpwatch/internal/config"
	"pumpwatch/internal/metrics"
	"pumpwatch/pkg/logger"
)

// MetadataSource abstracts the REST lookups so the cache can be tested
// without a network.
type MetadataSource interface {
	GetListingTime(ctx context.Context, symbol string) (time.Time, error)
	GetDepthStats(ctx context.Context, symbol string, levels int) (DepthStats, error)
}

// Metadata is the cached per-symbol exchange metadata. Zero value means
// nothing is known yet; filters treat unknown as reject.
type Metadata struct {
	ListingTime  time.Time
	ListingKnown bool

	TopDepthRatio float64
	SpreadPct     float64
	DepthAt       time.Time
	DepthKnown    bool
}

type metaEntry struct {
	meta     Metadata
	fetching bool
}

// MetadataCache serves filter candidates from memory and refreshes entries in
// the background. Lookups never block: a miss schedules a fetch and reports
// unknown, so the affected record is simply rejected until data arrives.
// Listing times are fetched once per symbol; depth stats expire on a TTL.
type MetadataCache struct {
	src MetadataSource
	cfg config.MetadataConfig
	sem *semaphore.Weighted
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*metaEntry
}

// NewMetadataCache creates a cache over the given source.
func NewMetadataCache(src MetadataSource, cfg config.MetadataConfig) *MetadataCache {
	return &MetadataCache{
		src:     src,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.FetchConcurrency),
		now:     time.Now,
		entries: make(map[string]*metaEntry),
	}
}

// Lookup returns the current cached metadata for a symbol and schedules a
// background refresh when the entry is missing or its depth stats expired.
func (c *MetadataCache) Lookup(ctx context.Context, symbol string) Metadata {
	c.mu.Lock()
	entry, ok := c.entries[symbol]
	if !ok {
		entry = &metaEntry{}
		c.entries[symbol] = entry
	}
	meta := entry.meta
	needsFetch := !entry.fetching &&
		(!meta.ListingKnown || !meta.DepthKnown || c.now().Sub(meta.DepthAt) > c.cfg.DepthTTL())
	if needsFetch {
		entry.fetching = true
	}
	c.mu.Unlock()

	if meta.DepthKnown && c.now().Sub(meta.DepthAt) > c.cfg.DepthTTL() {
		meta.DepthKnown = false
	}

	if needsFetch {
		go c.fetch(ctx, symbol)
	}
	return meta
}

// Remove drops the cached entry for a symbol that left the universe.
func (c *MetadataCache) Remove(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

func (c *MetadataCache) fetch(ctx context.Context, symbol string) {
	defer c.clearFetching(symbol)

	// Bounded concurrency toward the REST API; if the limiter is saturated
	// the symbol is retried on a later tick.
	if !c.sem.TryAcquire(1) {
		return
	}
	defer c.sem.Release(1)

	c.mu.Lock()
	entry := c.entries[symbol]
	var listingKnown bool
	if entry != nil {
		listingKnown = entry.meta.ListingKnown
	}
	c.mu.Unlock()
	if entry == nil {
		return
	}

	if !listingKnown {
		listed, err := c.src.GetListingTime(ctx, symbol)
		if err != nil {
			metrics.MetadataFetchErrors.Inc()
			logger.Debug("listing time lookup failed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			c.mu.Lock()
			entry.meta.ListingTime = listed
			entry.meta.ListingKnown = true
			c.mu.Unlock()
		}
	}

	stats, err := c.src.GetDepthStats(ctx, symbol, c.cfg.DepthLevels)
	if err != nil {
		metrics.MetadataFetchErrors.Inc()
		logger.Debug("depth lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	c.mu.Lock()
	entry.meta.TopDepthRatio = stats.TopDepthRatio
	entry.meta.SpreadPct = stats.SpreadPct
	entry.meta.DepthAt = stats.At
	entry.meta.DepthKnown = true
	c.mu.Unlock()
}

func (c *MetadataCache) clearFetching(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[symbol]; ok {
		entry.fetching = false
	}
}
