package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/vitisense/vinesentry/internal/adapter/http"
	kafkaadapter "github.com/vitisense/vinesentry/internal/adapter/kafka"
	"github.com/vitisense/vinesentry/internal/adapter/openmeteo"
	"github.com/vitisense/vinesentry/internal/adapter/store"
	"github.com/vitisense/vinesentry/internal/config"
	"github.com/vitisense/vinesentry/internal/engine"
	"github.com/vitisense/vinesentry/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}

	parcels := store.NewParcelRepo(db, logger)
	treatments := store.NewTreatmentRepo(db, logger, metrics)
	weather := store.NewWeatherRepo(db)
	analyses := store.NewAnalysisRepo(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := parcels.Seed(ctx); err != nil {
		logger.Error("failed to seed parcels", "error", err)
		os.Exit(1)
	}

	client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, logger)
	provider := openmeteo.NewCachedProvider(client, cfg.WeatherCacheTTL)

	// Analyses always land in the local history; Kafka publishing is
	// feature-flagged via KAFKA_ENABLED.
	recorder := engine.MultiRecorder{analyses}
	var kafkaRecorder *kafkaadapter.Recorder
	if cfg.KafkaEnabled {
		kafkaRecorder = kafkaadapter.NewRecorder(cfg, logger)
		recorder = append(recorder, kafkaRecorder)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaAnalysisTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}

	refresher := engine.NewRefresher(provider, weather, logger, metrics,
		cfg.Latitude, cfg.Longitude, cfg.WeatherPastDays, cfg.WeatherForecastDays, cfg.BaseTempGDD)

	thresholds := engine.DefaultThresholds()
	thresholds.RainAlertMM = cfg.RainAlertMM
	thresholds.LowProtection = cfg.LowProtectionThreshold

	analyzer := engine.NewAnalyzer(parcels, treatments, recorder, logger, metrics,
		thresholds, cfg.RFUMaxMM, cfg.BaseTempGDD)

	svc := engine.NewService(refresher, analyzer, logger, metrics, cfg.AnalysisInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, treatments, parcels, analyses, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the analysis loop.
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaRecorder != nil {
		if err := kafkaRecorder.Close(); err != nil {
			logger.Error("kafka recorder close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
