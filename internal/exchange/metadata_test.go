package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/config"
)

type fakeSource struct {
	mu           sync.Mutex
	listingTime  time.Time
	listingErr   error
	depth        DepthStats
	depthErr     error
	listingCalls int
	depthCalls   int
}

func (f *fakeSource) GetListingTime(_ context.Context, _ string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingCalls++
	return f.listingTime, f.listingErr
}

func (f *fakeSource) GetDepthStats(_ context.Context, _ string, _ int) (DepthStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depthCalls++
	return f.depth, f.depthErr
}

func (f *fakeSource) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listingCalls, f.depthCalls
}

func TestMetadataCacheLookup(t *testing.T) {
	listed := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		listingTime: listed,
		depth:       DepthStats{TopDepthRatio: 0.12, SpreadPct: 0.05, At: time.Now()},
	}
	cache := NewMetadataCache(src, config.Default().Metadata)
	ctx := context.Background()

	// First lookup is a miss: unknown now, fetch scheduled in the background.
	meta := cache.Lookup(ctx, "BTCUSDT")
	assert.False(t, meta.ListingKnown)
	assert.False(t, meta.DepthKnown)

	require.Eventually(t, func() bool {
		m := cache.Lookup(ctx, "BTCUSDT")
		return m.ListingKnown && m.DepthKnown
	}, 2*time.Second, 10*time.Millisecond)

	meta = cache.Lookup(ctx, "BTCUSDT")
	assert.Equal(t, listed, meta.ListingTime)
	assert.InDelta(t, 0.12, meta.TopDepthRatio, 1e-9)
	assert.InDelta(t, 0.05, meta.SpreadPct, 1e-9)
}

func TestMetadataCacheListingFetchedOnce(t *testing.T) {
	src := &fakeSource{
		listingTime: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		depth:       DepthStats{TopDepthRatio: 0.12, At: time.Now()},
	}
	cache := NewMetadataCache(src, config.Default().Metadata)
	ctx := context.Background()

	cache.Lookup(ctx, "BTCUSDT")
	require.Eventually(t, func() bool {
		m := cache.Lookup(ctx, "BTCUSDT")
		return m.ListingKnown && m.DepthKnown
	}, 2*time.Second, 10*time.Millisecond)

	// Further lookups inside the depth TTL hit the cache only.
	for i := 0; i < 10; i++ {
		cache.Lookup(ctx, "BTCUSDT")
	}
	listingCalls, _ := src.calls()
	assert.Equal(t, 1, listingCalls, "listing time never changes, fetch it once")
}

func TestMetadataCacheFetchFailureStaysUnknown(t *testing.T) {
	src := &fakeSource{
		listingErr: errors.New("rest down"),
		depthErr:   errors.New("rest down"),
	}
	cache := NewMetadataCache(src, config.Default().Metadata)
	ctx := context.Background()

	cache.Lookup(ctx, "BTCUSDT")
	require.Eventually(t, func() bool {
		l, d := src.calls()
		return l > 0 && d > 0
	}, 2*time.Second, 10*time.Millisecond)

	meta := cache.Lookup(ctx, "BTCUSDT")
	assert.False(t, meta.ListingKnown, "failed lookups must read as unknown, not zero")
	assert.False(t, meta.DepthKnown)
}

func TestMetadataCacheRemove(t *testing.T) {
	src := &fakeSource{
		listingTime: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		depth:       DepthStats{TopDepthRatio: 0.12, At: time.Now()},
	}
	cache := NewMetadataCache(src, config.Default().Metadata)
	ctx := context.Background()

	cache.Lookup(ctx, "BTCUSDT")
	require.Eventually(t, func() bool {
		return cache.Lookup(ctx, "BTCUSDT").DepthKnown
	}, 2*time.Second, 10*time.Millisecond)

	cache.Remove("BTCUSDT")
	meta := cache.Lookup(ctx, "BTCUSDT")
	assert.False(t, meta.DepthKnown, "removal drops all cached state")
}

func TestMetadataCacheDepthExpires(t *testing.T) {
	src := &fakeSource{
		listingTime: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		depth:       DepthStats{TopDepthRatio: 0.12, At: time.Now()},
	}
	cache := NewMetadataCache(src, config.Default().Metadata)
	ctx := context.Background()

	cache.Lookup(ctx, "BTCUSDT")
	require.Eventually(t, func() bool {
		return cache.Lookup(ctx, "BTCUSDT").DepthKnown
	}, 2*time.Second, 10*time.Millisecond)

	// Age the cached stats past the TTL; they no longer count as known.
	cache.mu.Lock()
	cache.entries["BTCUSDT"].meta.DepthAt = time.Now().Add(-2 * cache.cfg.DepthTTL())
	cache.mu.Unlock()

	meta := cache.Lookup(ctx, "BTCUSDT")
	assert.False(t, meta.DepthKnown)
}
