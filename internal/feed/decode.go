package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Update is one decoded per-symbol ticker update from the upstream stream.
type Update struct {
	Symbol         string
	Price          decimal.Decimal
	QuoteVolume24h decimal.Decimal
	ChangePct24h   float64
	BidPrice       decimal.Decimal
	AskPrice       decimal.Decimal
	EventTime      time.Time
}

// rawTicker mirrors one entry of the Binance !ticker@arr payload.
type rawTicker struct {
	Symbol       string `json:"s"`
	EventTime    int64  `json:"E"`
	LastPrice    string `json:"c"`
	ChangePct24h string `json:"P"`
	QuoteVolume  string `json:"q"`
	BidPrice     string `json:"b"`
	AskPrice     string `json:"a"`
}

// decodeFrame parses one websocket frame into ticker updates. A frame that is
// not valid JSON is an error; individual entries that fail to parse are
// skipped and counted in dropped, since one bad entry must not discard the
// rest of the batch.
func decodeFrame(data []byte) (updates []Update, dropped int, err error) {
	var raw []rawTicker
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling ticker frame: %w", err)
	}

	updates = make([]Update, 0, len(raw))
	for _, rt := range raw {
		u, err := rt.toUpdate()
		if err != nil {
			dropped++
			continue
		}
		updates = append(updates, u)
	}
	return updates, dropped, nil
}

func (rt rawTicker) toUpdate() (Update, error) {
	if rt.Symbol == "" {
		return Update{}, fmt.Errorf("empty symbol")
	}
	price, err := decimal.NewFromString(rt.LastPrice)
	if err != nil {
		return Update{}, fmt.Errorf("parsing price %q: %w", rt.LastPrice, err)
	}
	quoteVol, err := decimal.NewFromString(rt.QuoteVolume)
	if err != nil {
		return Update{}, fmt.Errorf("parsing quote volume %q: %w", rt.QuoteVolume, err)
	}
	changePct, err := decimal.NewFromString(rt.ChangePct24h)
	if err != nil {
		return Update{}, fmt.Errorf("parsing change pct %q: %w", rt.ChangePct24h, err)
	}

	u := Update{
		Symbol:         rt.Symbol,
		Price:          price,
		QuoteVolume24h: quoteVol,
		EventTime:      time.UnixMilli(rt.EventTime),
	}
	u.ChangePct24h, _ = changePct.Float64()

	// Best bid/ask are optional on some streams.
	if rt.BidPrice != "" {
		if bid, err := decimal.NewFromString(rt.BidPrice); err == nil {
			u.BidPrice = bid
		}
	}
	if rt.AskPrice != "" {
		if ask, err := decimal.NewFromString(rt.AskPrice); err == nil {
			u.AskPrice = ask
		}
	}
	return u, nil
}

// SpreadPct returns the bid/ask spread as a percentage of the mid price, or
// false when either side is missing.
func (u Update) SpreadPct() (float64, bool) {
	if u.BidPrice.IsZero() || u.AskPrice.IsZero() {
		return 0, false
	}
	mid := u.BidPrice.Add(u.AskPrice).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return 0, false
	}
	spread := u.AskPrice.Sub(u.BidPrice).Div(mid).Mul(decimal.NewFromInt(100))
	f, _ := spread.Float64()
	return f, true
}
