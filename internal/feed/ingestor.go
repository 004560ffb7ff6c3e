// Package feed owns the single upstream connection to the exchange ticker
// stream. The stream is delta-based (only pairs that changed are present in a
// frame), so the ingestor coalesces updates into a full per-symbol state table
// before handing each batch downstream.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"pumpwatch/internal/config"
	"pumpwatch/internal/metrics"
	"pumpwatch/pkg/logger"
)

const tickerStreamPath = "/ws/!ticker@arr"

// BatchHandler receives the full coalesced universe after every ingested
// frame. It runs synchronously on the read loop and must not block; the
// ingestor is the fastest-producing stage by design.
type BatchHandler func(universe []Update, at time.Time)

// EvictHandler is invoked when a symbol leaves the universe (no update within
// the symbol TTL), so downstream state for it can be released.
type EvictHandler func(symbol string)

// ResetHandler is invoked after a connection loss, before the first
// post-reconnect batch. Downstream rolling state must be discarded so the
// next batch is treated as a cold-start baseline.
type ResetHandler func()

type tableEntry struct {
	update   Update
	lastSeen time.Time
}

// Ingestor maintains the upstream connection and the per-symbol state table.
type Ingestor struct {
	url     string
	cfg     config.FeedConfig
	onBatch BatchHandler
	onEvict EvictHandler
	onReset ResetHandler

	table map[string]tableEntry
	now   func() time.Time
}

// NewIngestor creates an ingestor for the given stream base URL. Handlers may
// be nil.
func NewIngestor(wsBaseURL string, cfg config.FeedConfig, onBatch BatchHandler, onEvict EvictHandler, onReset ResetHandler) *Ingestor {
	return &Ingestor{
		url:     wsBaseURL + tickerStreamPath,
		cfg:     cfg,
		onBatch: onBatch,
		onEvict: onEvict,
		onReset: onReset,
		table:   make(map[string]tableEntry),
		now:     time.Now,
	}
}

// Run connects and consumes the stream until ctx is canceled, reconnecting
// with exponential backoff and full jitter on any connection-level failure.
// Each reconnect discards the state table and signals downstream reset.
func (in *Ingestor) Run(ctx context.Context) error {
	retry := &backoff.Backoff{
		Min:    in.cfg.ReconnectBase(),
		Max:    in.cfg.ReconnectMax(),
		Jitter: true,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := in.consume(ctx, retry)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("feed disconnected", zap.Error(err))
		metrics.ReconnectsTotal.Inc()
		in.reset()

		delay := retry.Duration()
		logger.Info("reconnecting to feed", zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (in *Ingestor) consume(ctx context.Context, retry *backoff.Backoff) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, in.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", in.url, err)
	}
	defer conn.Close()

	logger.Info("connected to ticker stream", zap.String("url", in.url))
	retry.Reset()

	conn.SetReadLimit(16 << 20)
	conn.SetReadDeadline(time.Now().Add(in.cfg.ReadTimeout()))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(in.cfg.ReadTimeout()))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go pingLoop(pingCtx, conn, in.cfg.ReadTimeout()/2)

	// Close the connection when ctx is canceled to unblock ReadMessage.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(in.cfg.ReadTimeout()))
		in.handleFrame(message)
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn, period time.Duration) {
	if period <= 0 {
		period = 15 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleFrame decodes one frame, applies it to the state table, evicts stale
// symbols, and hands the full universe downstream. A decode failure drops the
// frame only; the connection stays up.
func (in *Ingestor) handleFrame(message []byte) {
	updates, dropped, err := decodeFrame(message)
	if err != nil {
		metrics.DecodeErrorsTotal.Inc()
		logger.Warn("dropping undecodable frame", zap.Error(err))
		return
	}
	if dropped > 0 {
		logger.Warn("dropped malformed ticker entries", zap.Int("count", dropped))
	}

	now := in.now()
	for _, u := range updates {
		in.table[u.Symbol] = tableEntry{update: u, lastSeen: now}
	}
	metrics.TickerUpdatesTotal.Add(float64(len(updates)))

	in.evictStale(now)

	if in.onBatch != nil {
		in.onBatch(in.universe(), now)
	}
}

func (in *Ingestor) evictStale(now time.Time) {
	cutoff := now.Add(-in.cfg.SymbolTTL())
	for sym, entry := range in.table {
		if entry.lastSeen.Before(cutoff) {
			delete(in.table, sym)
			logger.Debug("evicted stale symbol", zap.String("symbol", sym))
			if in.onEvict != nil {
				in.onEvict(sym)
			}
		}
	}
}

func (in *Ingestor) universe() []Update {
	out := make([]Update, 0, len(in.table))
	for _, entry := range in.table {
		out = append(out, entry.update)
	}
	return out
}

func (in *Ingestor) reset() {
	in.table = make(map[string]tableEntry)
	if in.onReset != nil {
		in.onReset()
	}
}
