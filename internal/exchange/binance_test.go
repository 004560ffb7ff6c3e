package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/config"
)

func TestNewBinanceClientTestnet(t *testing.T) {
	client := NewBinanceClient(config.BinanceConfig{Testnet: true})
	require.NotNil(t, client)
	assert.Equal(t, "https://testnet.binance.vision", client.spot.BaseURL)
}

func TestNewBinanceClientMainnet(t *testing.T) {
	client := NewBinanceClient(config.BinanceConfig{APIKey: "k", APISecret: "s"})
	require.NotNil(t, client)
	assert.NotEqual(t, "https://testnet.binance.vision", client.spot.BaseURL)
}
