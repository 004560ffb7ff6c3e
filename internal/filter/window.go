package filter

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type sample struct {
	ts       time.Time
	price    decimal.Decimal
	quoteVol decimal.Decimal
}

// Window keeps a bounded trailing history of (timestamp, price, 24h quote
// volume) samples per symbol, pruned to the configured span. It backs the
// 1h price change and the live-volume estimate.
//
// Samples are observed after the current tick has been evaluated, so lookups
// only ever see prior observations.
type Window struct {
	mu      sync.Mutex
	span    time.Duration
	samples map[string][]sample
}

// NewWindow creates a window retaining history for the given span.
func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = time.Hour
	}
	return &Window{
		span:    span,
		samples: make(map[string][]sample),
	}
}

// Observe appends one sample for the symbol and prunes expired history.
func (w *Window) Observe(symbol string, ts time.Time, price, quoteVol decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pruned := pruneBefore(w.samples[symbol], ts.Add(-w.span))
	w.samples[symbol] = append(pruned, sample{ts: ts, price: price, quoteVol: quoteVol})
}

// ChangePct returns the percent price change against the oldest retained
// sample for the symbol. The second return is false when no prior observation
// exists inside the window (cold start), which callers must treat as
// "unknown", never as zero.
func (w *Window) ChangePct(symbol string, now time.Time, price decimal.Decimal) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	retained := pruneBefore(w.samples[symbol], now.Add(-w.span))
	w.samples[symbol] = retained
	if len(retained) == 0 {
		return 0, false
	}

	oldest := retained[0]
	if oldest.price.IsZero() {
		return 0, false
	}
	pct := price.Sub(oldest.price).Div(oldest.price).Mul(decimal.NewFromInt(100))
	f, _ := pct.Float64()
	return f, true
}

// LiveVolume estimates the quote volume traded over the trailing liveSpan as
// the difference of 24h cumulative volumes. The estimate is clamped at zero
// because old trades rolling out of the 24h figure can make the raw delta
// negative. Returns false when no sample old enough exists yet.
func (w *Window) LiveVolume(symbol string, now time.Time, liveSpan time.Duration, quoteVol decimal.Decimal) (decimal.Decimal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	retained := pruneBefore(w.samples[symbol], now.Add(-w.span))
	w.samples[symbol] = retained

	cutoff := now.Add(-liveSpan)
	var base *sample
	for i := range retained {
		if retained[i].ts.After(cutoff) {
			break
		}
		base = &retained[i]
	}
	if base == nil {
		return decimal.Zero, false
	}

	delta := quoteVol.Sub(base.quoteVol)
	if delta.IsNegative() {
		delta = decimal.Zero
	}
	return delta, true
}

// Remove drops all history for a symbol (de-listing or universe eviction).
func (w *Window) Remove(symbol string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.samples, symbol)
}

// Reset discards all history. Called after a feed reconnect so the first
// post-reconnect batch is a cold-start baseline.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = make(map[string][]sample)
}

// Len reports the number of tracked symbols.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

func pruneBefore(s []sample, cutoff time.Time) []sample {
	i := 0
	for i < len(s) && s[i].ts.Before(cutoff) {
		i++
	}
	if i == 0 {
		return s
	}
	return append(s[:0:0], s[i:]...)
}
