package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1_000_000.0, cfg.Filters.MinQuoteVolume24h)
	assert.Equal(t, 5.0, cfg.Filters.MinChange24h)
	assert.Equal(t, 1.0, cfg.Filters.MinChange1h)
	assert.Equal(t, 30*24*time.Hour, cfg.Filters.MinListingAge())
	assert.Equal(t, 0.05, cfg.Filters.MinDepthRatio)
	assert.Equal(t, "quote_volume", cfg.Filters.SortBy)
	assert.Equal(t, time.Second, cfg.Feed.ReconnectBase())
	assert.Equal(t, 30*time.Second, cfg.Feed.ReconnectMax())
	assert.Equal(t, 2*time.Minute, cfg.Feed.MaxStaleness())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
filters:
  min_quote_volume_24h: 2500000
  min_change_1h: 2.5
  sort_by: change_24h
server:
  addr: ":9999"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2_500_000.0, cfg.Filters.MinQuoteVolume24h)
	assert.Equal(t, 2.5, cfg.Filters.MinChange1h)
	assert.Equal(t, "change_24h", cfg.Filters.SortBy)
	assert.Equal(t, ":9999", cfg.Server.Addr)

	// Untouched sections fall back to defaults.
	assert.Equal(t, 5.0, cfg.Filters.MinChange24h)
	assert.Equal(t, "wss://stream.binance.com:9443", cfg.Binance.WSBaseURL)
}

// Zero floors read as unset and snap to defaults; negative floors are the
// supported way to disable a threshold and must survive defaulting.
func TestLoadNegativeFloorsDisableThresholds(t *testing.T) {
	path := writeConfig(t, `
filters:
  min_change_24h: -1
  min_live_volume: -1
  min_depth_ratio: -1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, -1.0, cfg.Filters.MinChange24h)
	assert.Equal(t, -1.0, cfg.Filters.MinLiveVolume)
	assert.Equal(t, -1.0, cfg.Filters.MinDepthRatio)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown comparator",
			content: "filters:\n  sort_by: alphabetical\n",
		},
		{
			name:    "unknown live volume source",
			content: "filters:\n  live_volume_source: tea_leaves\n",
		},
		{
			name:    "storage enabled without url",
			content: "storage:\n  enabled: true\n",
		},
		{
			name:    "kafka enabled without topic",
			content: "kafka:\n  enabled: true\n  broker_url: localhost:9092\n",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
