package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotVersion is the wire format version sent to viewers. Schema changes
// must be additive so older viewers keep working.
const SnapshotVersion = 1

// Snapshot status values.
const (
	StatusOK              = "ok"
	StatusFeedUnavailable = "feed_unavailable"
)

// TickerRecord is the normalized state of one trading pair at one point in
// time. Records are created fresh on every ingested batch and never mutated
// in place.
type TickerRecord struct {
	Symbol         string
	Price          decimal.Decimal
	QuoteVolume24h decimal.Decimal
	ChangePct24h   float64
	EventTime      time.Time

	// Derived from the rolling window; unknown until at least one prior
	// observation of the symbol exists inside the window.
	ChangePct1h     float64
	Change1hKnown   bool
	LiveQuoteVolume decimal.Decimal
	LiveVolumeKnown bool

	// Exchange metadata, unknown until fetched.
	ListingAge      time.Duration
	ListingAgeKnown bool
	TopDepthRatio   float64
	DepthKnown      bool
	BidAskSpreadPct float64
}

// Signal is the wire representation of one admitted record.
type Signal struct {
	Symbol         string          `json:"symbol"`
	Price          decimal.Decimal `json:"price"`
	QuoteVolume24h decimal.Decimal `json:"quote_vol_24h"`
	ChangePct24h   float64         `json:"change_pct_24h"`
	ChangePct1h    float64         `json:"change_pct_1h"`

	// Optional additive fields.
	ListingAgeDays float64 `json:"listing_age_days,omitempty"`
	TopDepthRatio  float64 `json:"depth_ratio,omitempty"`
	SpreadPct      float64 `json:"spread_pct,omitempty"`
}

// SignalSnapshot is one full publication of the admitted signal set. It is
// immutable once published; each publish fully replaces the previous one.
// An empty Signals slice is a valid state ("no qualifying signals right now").
type SignalSnapshot struct {
	Version    int       `json:"v"`
	Generation uint64    `json:"gen"`
	Status     string    `json:"status"`
	AsOf       time.Time `json:"as_of"`
	Signals    []Signal  `json:"signals"`
}

// NewSignal converts an admitted record to its wire form.
func NewSignal(r TickerRecord) Signal {
	s := Signal{
		Symbol:         r.Symbol,
		Price:          r.Price,
		QuoteVolume24h: r.QuoteVolume24h,
		ChangePct24h:   r.ChangePct24h,
		ChangePct1h:    r.ChangePct1h,
		SpreadPct:      r.BidAskSpreadPct,
	}
	if r.ListingAgeKnown {
		s.ListingAgeDays = r.ListingAge.Hours() / 24
	}
	if r.DepthKnown {
		s.TopDepthRatio = r.TopDepthRatio
	}
	return s
}
