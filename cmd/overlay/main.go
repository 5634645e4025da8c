package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/noaa-buoy-overlay/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/noaa-buoy-overlay/internal/adapter/kafka"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/adapter/ndbc"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/adapter/nws"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/config"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/pipeline"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st := store.New(clockwork.NewRealClock(), metrics, cfg.CursorTolerance)
	feeds := ndbc.NewClient(cfg.NDBCBaseURL, cfg.NDBCTimeout, cfg.NDBCMirrorDir, metrics, logger)
	forecaster := nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.NWSTimeout, cfg.NWSCacheSize, metrics, logger)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var (
		publisher pipeline.SnapshotPublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("kafka snapshot publishing disabled")
	}

	refresher := pipeline.New(feeds, st, publisher, cfg.RefreshMode, logger, metrics)
	scheduler := pipeline.NewScheduler(refresher, cfg.RefreshSchedule, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, st, refresher, forecaster, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start refresh scheduler.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
