package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pumpwatch/internal/config"
	"pumpwatch/internal/exchange"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/hub"
	"pumpwatch/internal/pipeline"
	"pumpwatch/internal/server"
	"pumpwatch/internal/sink"
	"pumpwatch/internal/storage"
	"pumpwatch/pkg/logger"
)

var version = "dev"

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	var cfg *config.Config
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Warn("config file not found, using defaults", zap.String("path", *configPath))
		cfg = config.Default()
	} else {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("loading configuration", zap.Error(err))
		}
		cfg = loaded
	}
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		logger.Fatal("invalid log level", zap.String("level", cfg.Logging.Level), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := exchange.NewBinanceClient(cfg.Binance)
	meta := exchange.NewMetadataCache(client, cfg.Metadata)

	var recorder pipeline.StatsRecorder
	if cfg.Storage.Enabled {
		influx, err := storage.NewInfluxDBRecorder(cfg.Storage)
		if err != nil {
			logger.Fatal("initializing stats recorder", zap.Error(err))
		}
		defer influx.Close()
		recorder = influx
	}

	signalHub := hub.New()
	pipe := pipeline.New(cfg, meta, signalHub, recorder)
	pipe.Bind(ctx)

	ingestor := feed.NewIngestor(cfg.Binance.WSBaseURL, cfg.Feed,
		pipe.HandleBatch, pipe.HandleEvict, pipe.HandleReset)

	srv := server.New(cfg.Server, signalHub, version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingestor.Run(ctx) })
	g.Go(func() error { return pipe.RunJanitor(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if cfg.Kafka.Enabled {
		kafkaSink := sink.NewKafkaSink(cfg.Kafka, signalHub)
		defer kafkaSink.Close()
		g.Go(func() error { return kafkaSink.Run(ctx) })
	}

	logger.Info("pumpwatch started", zap.String("version", version), zap.String("addr", cfg.Server.Addr))
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("shutting down with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
