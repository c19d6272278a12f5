package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"fuelcast/internal/config"
	"fuelcast/internal/daemon"
	"fuelcast/internal/engine"
	"fuelcast/internal/monitor"
	"fuelcast/internal/source"
	"fuelcast/internal/storage"
)

func main() {
	var (
		configFile = flag.String("config", "", "optional YAML config overlay")
		mode       = flag.String("mode", "daemon", "run mode: daemon|train|metrics|predict|monitor")
		segment    = flag.String("segment", "", "segment name for -mode predict membership output")
		limit      = flag.Int("limit", 0, "limit for segment membership output (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}
	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, "config file error:", err)
			os.Exit(2)
		}
	}

	logger := newLogger(cfg.LogLevel)
	logConfig(logger, cfg)

	src, err := openSource(cfg)
	if err != nil {
		logger.Error("failed to open transaction source", "err", err)
		os.Exit(2)
	}
	defer src.Close()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open run-history store", "err", err)
		os.Exit(2)
	}
	if store != nil {
		defer store.Close()
	}

	eng := engine.New(cfg, src, store, logger)
	if err := eng.LoadBundle(); err != nil {
		logger.Error("failed to load model bundle", "err", err)
		os.Exit(2)
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch *mode {
	case "daemon":
		runDaemon(ctx, cfg, eng, store, logger)
	case "train":
		runTrain(ctx, eng, logger)
	case "metrics":
		runMetrics(ctx, eng, logger)
	case "predict":
		runPredict(ctx, eng, *segment, *limit, logger)
	case "monitor":
		runMonitor(ctx, cfg, eng, store, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func runDaemon(ctx context.Context, cfg config.Config, eng *engine.Engine, store storage.Store, logger *slog.Logger) {
	d := daemon.New(cfg, eng, store, daemon.NewMetrics(), logger)
	logger.Info("starting fuelcast daemon", "listen", cfg.ListenAddr, "refresh", cfg.RefreshInterval)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func runTrain(ctx context.Context, eng *engine.Engine, logger *slog.Logger) {
	report, err := eng.TrainAll(ctx, storage.TriggerManual)
	if err != nil {
		logger.Error("training failed", "err", err)
		os.Exit(1)
	}
	writeJSON(report)
}

func runMetrics(ctx context.Context, eng *engine.Engine, logger *slog.Logger) {
	ms, err := eng.ComputeCustomerMetrics(ctx)
	if err != nil {
		logger.Error("metric computation failed", "err", err)
		os.Exit(1)
	}
	writeJSON(ms)
}

func runPredict(ctx context.Context, eng *engine.Engine, segment string, limit int, logger *slog.Logger) {
	ms, err := eng.ComputeCustomerMetrics(ctx)
	if err != nil {
		logger.Error("metric computation failed", "err", err)
		os.Exit(1)
	}

	if segment != "" {
		members, err := eng.SegmentMembers(ms, segment, limit)
		if err != nil {
			logger.Error("segment membership failed", "err", err)
			os.Exit(1)
		}
		writeJSON(members)
		return
	}

	churn, err := eng.PredictChurn(ms)
	if err != nil {
		logger.Error("churn prediction failed", "err", err)
		os.Exit(1)
	}
	revenue, err := eng.PredictRevenue(ms)
	if err != nil {
		logger.Error("revenue prediction failed", "err", err)
		os.Exit(1)
	}
	segments, err := eng.PredictSegments(ms)
	if err != nil {
		logger.Error("segment prediction failed", "err", err)
		os.Exit(1)
	}
	summary, err := eng.SegmentSummary(ms)
	if err != nil {
		logger.Error("segment summary failed", "err", err)
		os.Exit(1)
	}
	txs, err := eng.FetchTransactions(ctx)
	if err != nil {
		logger.Error("transaction fetch failed", "err", err)
		os.Exit(1)
	}
	anomalies, err := eng.DetectAnomalies(txs)
	if err != nil {
		logger.Error("anomaly detection failed", "err", err)
		os.Exit(1)
	}

	writeJSON(map[string]any{
		"churn":           churn,
		"revenue":         revenue,
		"segments":        segments,
		"segment_summary": summary,
		"anomalies":       anomalies,
	})
}

func runMonitor(ctx context.Context, cfg config.Config, eng *engine.Engine, store storage.Store, logger *slog.Logger) {
	ms, err := eng.ComputeCustomerMetrics(ctx)
	if err != nil {
		logger.Error("metric computation failed", "err", err)
		os.Exit(1)
	}

	th := monitor.DefaultThresholds()
	th.AlertChurnScore = cfg.AlertChurnScore
	th.AlertFailureRate = cfg.FailureRateAlert

	reports, alerts := monitor.Sweep(ms, time.Now(), th)
	if store != nil {
		for i := range alerts {
			if err := store.InsertAlert(&alerts[i]); err != nil {
				logger.Warn("alert insert failed", "err", err)
			}
		}
	}
	writeJSON(map[string]any{"health": reports, "alerts": alerts})
}

func openSource(cfg config.Config) (source.Source, error) {
	var (
		src source.Source
		err error
	)
	switch cfg.SourceDriver {
	case config.DriverPostgres:
		src, err = source.NewPostgresSource(context.Background(), cfg.SourceDSN, cfg.PaymentsTable)
	case config.DriverMySQL:
		src, err = source.NewMySQLSource(cfg.SourceDSN, cfg.PaymentsTable)
	default:
		return nil, fmt.Errorf("unsupported source driver %q", cfg.SourceDriver)
	}
	if err != nil {
		return nil, err
	}
	return source.WithRetry(src, source.DefaultRetryPolicy()), nil
}

func openStore(cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		return storage.NewSQLiteStore(cfg.StoragePath, cfg.StorageMaxRows, logger)
	case config.StorageMemory:
		return storage.NewMemoryStore(cfg.StorageMaxRows), nil
	default:
		return nil, nil
	}
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

func logConfig(logger *slog.Logger, cfg config.Config) {
	logger.Info("configuration",
		"source_driver", string(cfg.SourceDriver),
		"payments_table", cfg.PaymentsTable,
		"window_days", cfg.WindowDays,
		"bundle_path", cfg.BundlePath,
		"storage", string(cfg.Storage),
		"storage_path", cfg.StoragePath,
		"min_training_samples", cfg.MinTrainingSamples,
		"segment_clusters", cfg.SegmentClusters,
		"contamination", cfg.Contamination,
		"refresh_interval", cfg.RefreshInterval,
		"retrain_interval", cfg.RetrainInterval,
		"listen_addr", cfg.ListenAddr,
		"log_level", cfg.LogLevel,
	)
}
