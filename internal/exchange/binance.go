package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"pumpwatch/internal/config"
)

// BinanceClient wraps the exchange REST API for the metadata the ticker
// stream does not carry: listing times and order-book depth.
type BinanceClient struct {
	spot *binance.Client
}

// NewBinanceClient creates a REST client. API keys are optional for the
// public endpoints used here.
func NewBinanceClient(cfg config.BinanceConfig) *BinanceClient {
	spotClient := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.Testnet {
		spotClient.SetApiEndpoint("https://testnet.binance.vision")
	}
	return &BinanceClient{spot: spotClient}
}

// GetListingTime returns the open time of the earliest daily candle for the
// symbol, which is the closest available proxy for its listing date.
func (c *BinanceClient) GetListingTime(ctx context.Context, symbol string) (time.Time, error) {
	klines, err := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval("1d").
		StartTime(0).
		Limit(1).
		Do(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetching earliest kline for %s: %w", symbol, err)
	}
	if len(klines) == 0 {
		return time.Time{}, fmt.Errorf("no kline history for %s", symbol)
	}
	return time.UnixMilli(klines[0].OpenTime), nil
}

// DepthStats is a point-in-time view of the order book shape.
type DepthStats struct {
	// TopDepthRatio is the share of quote-denominated depth sitting in the
	// top-3 levels of each side, relative to all fetched levels.
	TopDepthRatio float64
	SpreadPct     float64
	At            time.Time
}

// GetDepthStats fetches an order-book snapshot and reduces it to the depth
// ratio and spread used by the admission filters.
func (c *BinanceClient) GetDepthStats(ctx context.Context, symbol string, levels int) (DepthStats, error) {
	ob, err := c.spot.NewDepthService().
		Symbol(symbol).
		Limit(levels).
		Do(ctx)
	if err != nil {
		return DepthStats{}, fmt.Errorf("fetching depth for %s: %w", symbol, err)
	}
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return DepthStats{}, fmt.Errorf("empty order book for %s", symbol)
	}

	var top, total decimal.Decimal
	for i, bid := range ob.Bids {
		notional, err := levelNotional(bid.Price, bid.Quantity)
		if err != nil {
			return DepthStats{}, fmt.Errorf("parsing bid level for %s: %w", symbol, err)
		}
		total = total.Add(notional)
		if i < 3 {
			top = top.Add(notional)
		}
	}
	for i, ask := range ob.Asks {
		notional, err := levelNotional(ask.Price, ask.Quantity)
		if err != nil {
			return DepthStats{}, fmt.Errorf("parsing ask level for %s: %w", symbol, err)
		}
		total = total.Add(notional)
		if i < 3 {
			top = top.Add(notional)
		}
	}
	if total.IsZero() {
		return DepthStats{}, fmt.Errorf("zero depth for %s", symbol)
	}

	stats := DepthStats{At: time.Now()}
	stats.TopDepthRatio, _ = top.Div(total).Float64()

	bestBid, err := decimal.NewFromString(ob.Bids[0].Price)
	if err != nil {
		return DepthStats{}, fmt.Errorf("parsing best bid for %s: %w", symbol, err)
	}
	bestAsk, err := decimal.NewFromString(ob.Asks[0].Price)
	if err != nil {
		return DepthStats{}, fmt.Errorf("parsing best ask for %s: %w", symbol, err)
	}
	mid := bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	if !mid.IsZero() {
		stats.SpreadPct, _ = bestAsk.Sub(bestBid).Div(mid).Mul(decimal.NewFromInt(100)).Float64()
	}
	return stats, nil
}

func levelNotional(price, quantity string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Mul(q), nil
}
