package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	frame := []byte(`[
		{"s":"BTCUSDT","E":1717243200000,"c":"30000.5","P":"5.5","q":"1500000","b":"30000","a":"30001"},
		{"s":"ETHUSDT","E":1717243200000,"c":"2000","P":"-2.0","q":"900000"}
	]`)

	updates, dropped, err := decodeFrame(frame)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, updates, 2)

	btc := updates[0]
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.True(t, btc.Price.Equal(decimal.NewFromFloat(30000.5)))
	assert.True(t, btc.QuoteVolume24h.Equal(decimal.NewFromInt(1_500_000)))
	assert.InDelta(t, 5.5, btc.ChangePct24h, 1e-9)
	assert.Equal(t, int64(1717243200000), btc.EventTime.UnixMilli())

	eth := updates[1]
	assert.InDelta(t, -2.0, eth.ChangePct24h, 1e-9)
	assert.True(t, eth.BidPrice.IsZero(), "bid/ask are optional")
}

func TestDecodeFrameDropsMalformedEntries(t *testing.T) {
	testCases := []struct {
		name    string
		frame   string
		kept    int
		dropped int
	}{
		{
			name:    "non-numeric price dropped, rest kept",
			frame:   `[{"s":"BTCUSDT","c":"oops","P":"5","q":"1"},{"s":"ETHUSDT","c":"2000","P":"5","q":"1"}]`,
			kept:    1,
			dropped: 1,
		},
		{
			name:    "empty symbol dropped",
			frame:   `[{"s":"","c":"1","P":"5","q":"1"}]`,
			kept:    0,
			dropped: 1,
		},
		{
			name:    "bad quote volume dropped",
			frame:   `[{"s":"BTCUSDT","c":"1","P":"5","q":"1_000"}]`,
			kept:    0,
			dropped: 1,
		},
		{
			name:    "empty array",
			frame:   `[]`,
			kept:    0,
			dropped: 0,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			updates, dropped, err := decodeFrame([]byte(tt.frame))
			require.NoError(t, err)
			assert.Len(t, updates, tt.kept)
			assert.Equal(t, tt.dropped, dropped)
		})
	}
}

func TestDecodeFrameInvalidJSON(t *testing.T) {
	_, _, err := decodeFrame([]byte(`{ not json }`))
	assert.Error(t, err)

	_, _, err = decodeFrame([]byte(`{"s":"BTCUSDT"}`))
	assert.Error(t, err, "a non-array frame is undecodable")
}

func TestUpdateSpreadPct(t *testing.T) {
	u := Update{
		BidPrice: decimal.NewFromInt(100),
		AskPrice: decimal.NewFromInt(101),
	}
	spread, ok := u.SpreadPct()
	require.True(t, ok)
	assert.InDelta(t, 0.995, spread, 0.001)

	_, ok = Update{AskPrice: decimal.NewFromInt(101)}.SpreadPct()
	assert.False(t, ok, "missing bid means unknown spread")
}
