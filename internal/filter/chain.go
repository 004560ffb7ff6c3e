package filter

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"pumpwatch/internal/config"
	"pumpwatch/pkg/models"
)

// Predicate is one independent admission rule. Admit must be pure: the same
// record and config always yield the same verdict.
type Predicate struct {
	Name  string
	Admit func(r models.TickerRecord, cfg config.FilterConfig) bool
}

// Chain evaluates records against an ordered predicate list. A record is
// admitted only if every predicate passes; evaluation short-circuits on the
// first failure, so predicates are ordered cheapest first. Correctness does
// not depend on the order.
type Chain struct {
	predicates []Predicate
}

// NewChain builds a chain from the given predicates, or the default set when
// none are supplied.
func NewChain(predicates ...Predicate) *Chain {
	if len(predicates) == 0 {
		predicates = DefaultPredicates()
	}
	return &Chain{predicates: predicates}
}

// DefaultPredicates returns the standard admission rules.
func DefaultPredicates() []Predicate {
	return []Predicate{
		{Name: "sanity", Admit: admitSanity},
		{Name: "quote_volume_24h", Admit: admitQuoteVolume24h},
		{Name: "gain_floors", Admit: admitGainFloors},
		{Name: "live_volume", Admit: admitLiveVolume},
		{Name: "listing_age", Admit: admitListingAge},
		{Name: "depth_ratio", Admit: admitDepthRatio},
	}
}

// Admit reports whether the record passes every predicate.
func (c *Chain) Admit(r models.TickerRecord, cfg config.FilterConfig) bool {
	for _, p := range c.predicates {
		if !p.Admit(r, cfg) {
			return false
		}
	}
	return true
}

// Evaluate filters the batch and returns the admitted records ranked per the
// configured comparator. The result is always non-nil; an empty slice is a
// valid outcome.
func (c *Chain) Evaluate(records []models.TickerRecord, cfg config.FilterConfig) []models.TickerRecord {
	admitted := make([]models.TickerRecord, 0, len(records))
	for _, r := range records {
		if c.Admit(r, cfg) {
			admitted = append(admitted, r)
		}
	}
	Rank(admitted, cfg.SortBy)
	return admitted
}

// Rank orders records by the named comparator, descending, with ties broken
// by symbol ascending for determinism.
func Rank(records []models.TickerRecord, sortBy string) {
	less := func(a, b models.TickerRecord) int {
		switch sortBy {
		case "change_24h":
			return compareFloat(a.ChangePct24h, b.ChangePct24h)
		case "change_1h":
			return compareFloat(a.ChangePct1h, b.ChangePct1h)
		default:
			return a.QuoteVolume24h.Cmp(b.QuoteVolume24h)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if c := less(records[i], records[j]); c != 0 {
			return c > 0
		}
		return records[i].Symbol < records[j].Symbol
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func admitSanity(r models.TickerRecord, _ config.FilterConfig) bool {
	if r.Symbol == "" {
		return false
	}
	for _, f := range []float64{r.ChangePct24h, r.ChangePct1h, r.TopDepthRatio, r.BidAskSpreadPct} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func admitQuoteVolume24h(r models.TickerRecord, cfg config.FilterConfig) bool {
	return r.QuoteVolume24h.GreaterThanOrEqual(decimal.NewFromFloat(cfg.MinQuoteVolume24h))
}

// admitGainFloors requires both the 24h and the 1h gain floors at once. An
// unknown 1h delta (cold start) is a rejection, not a zero.
func admitGainFloors(r models.TickerRecord, cfg config.FilterConfig) bool {
	if r.ChangePct24h < cfg.MinChange24h {
		return false
	}
	return r.Change1hKnown && r.ChangePct1h >= cfg.MinChange1h
}

// admitLiveVolume re-checks volume at broadcast time: a pair that cleared the
// 24h floor historically but whose live turnover has collapsed is rejected.
func admitLiveVolume(r models.TickerRecord, cfg config.FilterConfig) bool {
	floor := decimal.NewFromFloat(cfg.MinLiveVolume)
	if cfg.LiveVolumeSource == "quote24h" {
		return r.QuoteVolume24h.GreaterThanOrEqual(floor)
	}
	return r.LiveVolumeKnown && r.LiveQuoteVolume.GreaterThanOrEqual(floor)
}

func admitListingAge(r models.TickerRecord, cfg config.FilterConfig) bool {
	return r.ListingAgeKnown && r.ListingAge >= cfg.MinListingAge()
}

func admitDepthRatio(r models.TickerRecord, cfg config.FilterConfig) bool {
	return r.DepthKnown && r.TopDepthRatio >= cfg.MinDepthRatio
}
