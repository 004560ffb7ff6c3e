package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TickerUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pumpwatch_ticker_updates_total", Help: "Per-symbol ticker updates ingested"},
	)
	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pumpwatch_decode_errors_total", Help: "Upstream frames dropped due to decode errors"},
	)
	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pumpwatch_feed_reconnects_total", Help: "Upstream feed reconnect attempts"},
	)
	SnapshotsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pumpwatch_snapshots_published_total", Help: "Signal snapshots published to the hub"},
	)
	SignalsAdmitted = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pumpwatch_signals_admitted", Help: "Signals in the latest published snapshot"},
	)
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pumpwatch_sessions_active", Help: "Connected viewer sessions"},
	)
	MetadataFetchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pumpwatch_metadata_fetch_errors_total", Help: "Failed exchange metadata lookups"},
	)
)

func init() {
	prometheus.MustRegister(
		TickerUpdatesTotal,
		DecodeErrorsTotal,
		ReconnectsTotal,
		SnapshotsPublished,
		SignalsAdmitted,
		SessionsActive,
		MetadataFetchErrors,
	)
}
