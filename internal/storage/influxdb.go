// Package storage records pipeline health measurements. Signal history is
// deliberately not persisted; only operational statistics go here.
package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"pumpwatch/internal/config"
	"pumpwatch/internal/pipeline"
)

// InfluxDBRecorder writes per-batch pipeline statistics to InfluxDB using the
// non-blocking write API, so recording never delays the ingest loop.
type InfluxDBRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInfluxDBRecorder connects to InfluxDB and verifies it is healthy.
func NewInfluxDBRecorder(cfg config.StorageConfig) (*InfluxDBRecorder, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB not healthy: %+v", health)
	}

	return &InfluxDBRecorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
	}, nil
}

// RecordBatch writes one evaluation cycle's statistics.
func (r *InfluxDBRecorder) RecordBatch(_ context.Context, stats pipeline.BatchStats) {
	point := influxdb2.NewPoint(
		"pipeline_batch",
		map[string]string{},
		map[string]interface{}{
			"generation":    int64(stats.Generation),
			"universe_size": stats.UniverseSize,
			"admitted":      stats.Admitted,
			"eval_ms":       float64(stats.EvalDuration.Microseconds()) / 1000,
		},
		stats.At,
	)
	r.writeAPI.WritePoint(point)
}

// Close flushes buffered points and closes the connection.
func (r *InfluxDBRecorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}
