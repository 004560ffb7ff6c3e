// Package sink forwards published snapshots to non-websocket consumers.
package sink

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"pumpwatch/internal/config"
	"pumpwatch/internal/hub"
	"pumpwatch/pkg/logger"
)

// KafkaSink reads the hub like any other session and writes each observed
// generation to a Kafka topic. It shares the hub's shedding semantics: if the
// broker is slow, intermediate generations are skipped, never queued.
type KafkaSink struct {
	writer *kafka.Writer
	hub    *hub.Hub
}

// NewKafkaSink creates a sink publishing to the configured topic.
func NewKafkaSink(cfg config.KafkaConfig, h *hub.Hub) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.BrokerURL),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		hub: h,
	}
}

// Run forwards snapshots until ctx is canceled. Broker errors are logged and
// the affected generation dropped; the sink never propagates backpressure
// into the pipeline.
func (s *KafkaSink) Run(ctx context.Context) error {
	var cursor uint64
	for {
		snap, err := s.hub.Wait(ctx, cursor)
		if err != nil {
			return err
		}
		cursor = snap.Generation

		payload, err := json.Marshal(snap)
		if err != nil {
			logger.Error("marshaling snapshot for kafka", zap.Error(err))
			continue
		}
		err = s.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(strconv.FormatUint(snap.Generation, 10)),
			Value: payload,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("kafka write failed, dropping generation",
				zap.Uint64("generation", snap.Generation), zap.Error(err))
		}
	}
}

// Close releases the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
