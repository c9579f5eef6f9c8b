package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vheastro/bkgdata/internal/api"
	"github.com/vheastro/bkgdata/internal/config"
	"github.com/vheastro/bkgdata/internal/feed"
	"github.com/vheastro/bkgdata/internal/loader"
	"github.com/vheastro/bkgdata/internal/metrics"
	"github.com/vheastro/bkgdata/internal/pipeline"
	"github.com/vheastro/bkgdata/internal/store"
	"github.com/vheastro/bkgdata/internal/watch"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting bkgdata ingestion service")

	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv("BKGDATA_CONFIG")
	}

	// Load configuration; without a file the built-in defaults apply.
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("Failed to load configuration", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Environment overrides
	cfg.Data.Mask = getEnv("BKGDATA_MASK", cfg.Data.Mask)
	cfg.HTTPAddr = getEnv("BKGDATA_HTTP_ADDR", cfg.HTTPAddr)
	cfg.NATSURL = getEnv("BKGDATA_NATS_URL", cfg.NATSURL)
	cfg.LogLevel = getEnv("BKGDATA_LOG_LEVEL", cfg.LogLevel)
	cfg.Workers = getEnvInt("BKGDATA_WORKERS", cfg.Workers)

	// Re-create the logger when the configured level differs
	if level := parseLogLevel(cfg.LogLevel); level != slog.LevelInfo {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		"config", *configPath,
		"mask", cfg.Data.Mask,
		"cuts", cfg.Data.Cuts,
		"time_delta_days", cfg.RunMatching.TimeDelta,
		"pointing_delta_deg", cfg.RunMatching.PointingDelta,
		"workers", cfg.Workers,
		"cache_size", cfg.CacheSize,
		"http_addr", cfg.HTTPAddr,
		"nats_url", cfg.NATSURL,
		"log_level", cfg.LogLevel)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create metrics
	prometheusMetrics := metrics.NewMetrics()

	// Connect to NATS when a URL is configured; the feed is optional
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without feed", "url", cfg.NATSURL, "error", err)
		} else {
			nc = conn
			defer nc.Close()
			logger.Info("Connected to NATS", "url", cfg.NATSURL)
			prometheusMetrics.SetNatsConnected(true)
		}
	}

	// Wire the ingestion chain
	runLoader := loader.New(cfg.Location(), logger, prometheusMetrics)
	runIndex := store.NewRunIndex(cfg.CacheSize)
	publisher := feed.NewPublisher(nc, logger, prometheusMetrics)
	pipe := pipeline.New(runLoader, runIndex, publisher, prometheusMetrics, logger, cfg.Workers)

	// Start the input file watcher before the batch so files arriving
	// from now on are picked up
	if cfg.Watch {
		fileWatcher := watch.New(pipe, cfg.Data.Mask, cfg.Data.Cuts, cfg.WatchDebounceMs, logger)
		if err := fileWatcher.Start(ctx); err != nil {
			logger.Error("Failed to start file watcher", "error", err)
			os.Exit(1)
		}
	}

	// Create HTTP API
	httpAPI := api.NewHTTPAPI(runIndex, cfg.RunMatching.TimeDelta, cfg.PointingDeltaAngle(), prometheusMetrics, nc)
	mux := http.NewServeMux()
	httpAPI.SetupRoutes(mux)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Run the ingestion batch
	batchDone := make(chan error, 1)
	go func() {
		_, err := pipe.Run(ctx, cfg.Data.Mask, cfg.Data.Cuts)
		batchDone <- err
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-batchDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ingestion batch failed", "error", err)
			exitCode = 1
		} else {
			// The batch is done; keep serving the run index.
			logger.Info("Serving run index", "addr", cfg.HTTPAddr)
			<-sigChan
			logger.Info("Shutdown signal received")
		}
	}

	logger.Info("Shutting down bkgdata service...")

	// Cancel context to stop a batch still in flight
	cancel()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("bkgdata service stopped")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// parseLogLevel maps a configuration string to a slog level.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
