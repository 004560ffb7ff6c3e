// Package pipeline drives the ingest → filter → publish cycle.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pumpwatch/internal/config"
	"pumpwatch/internal/exchange"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/filter"
	"pumpwatch/internal/hub"
	"pumpwatch/internal/metrics"
	"pumpwatch/pkg/logger"
	"pumpwatch/pkg/models"
)

// BatchStats summarizes one evaluation cycle for observability sinks.
type BatchStats struct {
	At           time.Time
	Generation   uint64
	UniverseSize int
	Admitted     int
	EvalDuration time.Duration
}

// StatsRecorder receives per-batch pipeline statistics.
type StatsRecorder interface {
	RecordBatch(ctx context.Context, stats BatchStats)
}

// Pipeline owns the synchronous evaluation path between the feed and the hub.
// HandleBatch runs on the ingestor read loop and never blocks: filter
// evaluation is pure in-memory computation and hub publishes are O(1).
type Pipeline struct {
	cfg      *config.Config
	chain    *filter.Chain
	window   *filter.Window
	meta     *exchange.MetadataCache
	hub      *hub.Hub
	recorder StatsRecorder

	ctx context.Context

	// mu serializes the pipeline's publishes. The janitor's staleness check
	// and its feed-unavailable publish happen under the same lock as batch
	// publishes, so a batch landing concurrently can never be overwritten by
	// an unavailable snapshot.
	mu          sync.Mutex
	lastPublish time.Time
}

// New creates a pipeline. recorder may be nil.
func New(cfg *config.Config, meta *exchange.MetadataCache, h *hub.Hub, recorder StatsRecorder) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		chain:    filter.NewChain(),
		window:   filter.NewWindow(time.Hour),
		meta:     meta,
		hub:      h,
		recorder: recorder,
		ctx:      context.Background(),
	}
}

// Bind sets the context used for background metadata fetches.
func (p *Pipeline) Bind(ctx context.Context) {
	p.ctx = ctx
}

// HandleBatch evaluates the full coalesced universe and publishes a fresh
// snapshot. A batch with zero admissible records still publishes an empty
// snapshot, which is a meaningful state of its own.
func (p *Pipeline) HandleBatch(universe []feed.Update, at time.Time) {
	started := time.Now()

	records := make([]models.TickerRecord, 0, len(universe))
	for _, u := range universe {
		records = append(records, p.buildRecord(u, at))
		p.window.Observe(u.Symbol, at, u.Price, u.QuoteVolume24h)
	}

	admitted := p.chain.Evaluate(records, p.cfg.Filters)

	signals := make([]models.Signal, 0, len(admitted))
	for _, r := range admitted {
		signals = append(signals, models.NewSignal(r))
	}

	p.mu.Lock()
	published := p.hub.Publish(models.SignalSnapshot{
		Version: models.SnapshotVersion,
		Status:  models.StatusOK,
		AsOf:    at,
		Signals: signals,
	})
	p.lastPublish = time.Now()
	p.mu.Unlock()

	metrics.SnapshotsPublished.Inc()
	metrics.SignalsAdmitted.Set(float64(len(signals)))

	if p.recorder != nil {
		p.recorder.RecordBatch(p.ctx, BatchStats{
			At:           at,
			Generation:   published.Generation,
			UniverseSize: len(universe),
			Admitted:     len(signals),
			EvalDuration: time.Since(started),
		})
	}
}

// HandleEvict releases rolling-window and metadata state for a symbol that
// left the universe.
func (p *Pipeline) HandleEvict(symbol string) {
	p.window.Remove(symbol)
	p.meta.Remove(symbol)
}

// HandleReset discards all rolling-window history after a feed reconnect, so
// the first post-reconnect batch is a cold-start baseline and cannot admit
// any record via the 1h delta.
func (p *Pipeline) HandleReset() {
	p.window.Reset()
	logger.Info("rolling window reset after reconnect")
}

// buildRecord assembles the evaluated record for one symbol from the live
// update, the rolling window, and cached exchange metadata. Metadata is only
// looked up for pairs that clear the cheap thresholds, to keep REST traffic
// bounded; everything else is rejected by the unknown-metadata rules anyway.
func (p *Pipeline) buildRecord(u feed.Update, at time.Time) models.TickerRecord {
	r := models.TickerRecord{
		Symbol:         u.Symbol,
		Price:          u.Price,
		QuoteVolume24h: u.QuoteVolume24h,
		ChangePct24h:   u.ChangePct24h,
		EventTime:      u.EventTime,
	}
	if spread, ok := u.SpreadPct(); ok {
		r.BidAskSpreadPct = spread
	}

	r.ChangePct1h, r.Change1hKnown = p.window.ChangePct(u.Symbol, at, u.Price)
	r.LiveQuoteVolume, r.LiveVolumeKnown = p.window.LiveVolume(
		u.Symbol, at, p.cfg.Filters.LiveVolumeWindow(), u.QuoteVolume24h)

	if !p.isCandidate(r) {
		return r
	}

	meta := p.meta.Lookup(p.ctx, u.Symbol)
	if meta.ListingKnown {
		r.ListingAge = at.Sub(meta.ListingTime)
		r.ListingAgeKnown = true
	}
	if meta.DepthKnown {
		r.TopDepthRatio = meta.TopDepthRatio
		r.DepthKnown = true
		if r.BidAskSpreadPct == 0 {
			r.BidAskSpreadPct = meta.SpreadPct
		}
	}
	return r
}

func (p *Pipeline) isCandidate(r models.TickerRecord) bool {
	return r.QuoteVolume24h.GreaterThanOrEqual(decimal.NewFromFloat(p.cfg.Filters.MinQuoteVolume24h)) &&
		r.ChangePct24h >= p.cfg.Filters.MinChange24h
}

// RunJanitor clears the published snapshot to an explicit feed-unavailable
// state when nothing has been published within the staleness limit, instead
// of silently serving arbitrarily old data during an upstream outage.
func (p *Pipeline) RunJanitor(ctx context.Context) error {
	interval := p.cfg.Feed.MaxStaleness() / 4
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.checkStaleness()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) checkStaleness() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastPublish.IsZero() || time.Since(p.lastPublish) < p.cfg.Feed.MaxStaleness() {
		return
	}
	latest, _ := p.hub.Latest()
	if latest == nil || latest.Status == models.StatusFeedUnavailable {
		return
	}

	logger.Warn("snapshot exceeded max staleness, marking feed unavailable",
		zap.Duration("max_staleness", p.cfg.Feed.MaxStaleness()))
	p.hub.Publish(models.SignalSnapshot{
		Version: models.SnapshotVersion,
		Status:  models.StatusFeedUnavailable,
		AsOf:    time.Now(),
		Signals: []models.Signal{},
	})
	p.lastPublish = time.Now()

	metrics.SnapshotsPublished.Inc()
	metrics.SignalsAdmitted.Set(0)
}
