// Package daemon runs the background analytics loop: periodic metric
// refreshes with a monitor sweep, optional scheduled retraining, and an
// operational HTTP listener serving /metrics and /healthz.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fuelcast/internal/config"
	"fuelcast/internal/engine"
	"fuelcast/internal/monitor"
	"fuelcast/internal/scoring"
	"fuelcast/internal/storage"
)

// Daemon drives the periodic refresh and retrain loops.
type Daemon struct {
	cfg     config.Config
	eng     *engine.Engine
	store   storage.Store // nil when run history is off
	metrics *Metrics
	logger  *slog.Logger

	healthy     atomic.Bool
	lastRefresh atomic.Value // time.Time

	stopCh chan struct{}
}

// New creates a daemon around a ready engine.
func New(cfg config.Config, eng *engine.Engine, store storage.Store, metrics *Metrics, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:     cfg,
		eng:     eng,
		store:   store,
		metrics: metrics,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Run blocks until ctx is canceled, refreshing on RefreshInterval and
// retraining on RetrainInterval (0 disables scheduled retrains).
func (d *Daemon) Run(ctx context.Context) error {
	srv := d.startHTTP()

	// First sweep immediately so gauges are populated before the first
	// scrape interval elapses.
	d.refresh(ctx)

	refreshTicker := time.NewTicker(d.cfg.RefreshInterval)
	defer refreshTicker.Stop()

	var retrainCh <-chan time.Time
	if d.cfg.RetrainInterval > 0 {
		retrainTicker := time.NewTicker(d.cfg.RetrainInterval)
		defer retrainTicker.Stop()
		retrainCh = retrainTicker.C
	}

	for {
		select {
		case <-refreshTicker.C:
			d.refresh(ctx)
		case <-retrainCh:
			d.retrain(ctx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				d.logger.Warn("http shutdown", "err", err)
			}
			return ctx.Err()
		case <-d.stopCh:
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// Stop ends the loop from another goroutine.
func (d *Daemon) Stop() {
	close(d.stopCh)
}

// refresh recomputes the customer table, updates gauges, and runs the
// monitor sweep.
func (d *Daemon) refresh(ctx context.Context) {
	started := time.Now()
	ms, err := d.eng.ComputeCustomerMetrics(ctx)
	if err != nil {
		d.metrics.RecordRefresh(false, time.Since(started))
		d.healthy.Store(false)
		d.logger.Error("refresh failed", "err", err)
		return
	}

	highRisk := 0
	var scoreSum float64
	for _, m := range ms {
		if m.ChurnRisk == scoring.RiskHigh {
			highRisk++
		}
		scoreSum += m.ChurnRiskScore
	}
	d.metrics.UpdateCustomerStats(len(ms), highRisk, scoreSum/float64(len(ms)))
	d.metrics.UpdateModelTrainedAt(d.eng.Bundle().Meta.TrainedAt)

	_, alerts := monitor.Sweep(ms, time.Now(), d.monitorThresholds())
	for i := range alerts {
		d.metrics.RecordAlert(alerts[i].Kind, string(alerts[i].Severity))
		if d.store != nil {
			if err := d.store.InsertAlert(&alerts[i]); err != nil {
				d.logger.Warn("alert insert failed", "err", err)
			}
		}
	}

	d.metrics.RecordRefresh(true, time.Since(started))
	d.healthy.Store(true)
	d.lastRefresh.Store(time.Now())
	d.logger.Info("refresh complete",
		"customers", len(ms),
		"high_risk", highRisk,
		"alerts", len(alerts),
		"duration", time.Since(started))
}

// retrain runs a scheduled full training pass.
func (d *Daemon) retrain(ctx context.Context) {
	started := time.Now()
	report, err := d.eng.TrainAll(ctx, storage.TriggerScheduled)
	if err != nil {
		d.metrics.RecordTraining(false, time.Since(started))
		d.logger.Error("scheduled retrain failed", "err", err)
		return
	}
	d.metrics.RecordTraining(true, report.Duration)
	d.metrics.UpdateModelTrainedAt(d.eng.Bundle().Meta.TrainedAt)
}

func (d *Daemon) monitorThresholds() monitor.Thresholds {
	th := monitor.DefaultThresholds()
	th.AlertChurnScore = d.cfg.AlertChurnScore
	th.AlertFailureRate = d.cfg.FailureRateAlert
	return th
}

type healthResponse struct {
	Status       string    `json:"status"`
	LastRefresh  time.Time `json:"last_refresh,omitempty"`
	ModelTrained time.Time `json:"model_trained_at,omitempty"`
}

func (d *Daemon) startHTTP() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", d.handleHealthz)

	srv := &http.Server{Addr: d.cfg.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("http listener failed", "addr", d.cfg.ListenAddr, "err", err)
		}
	}()
	d.logger.Info("operational listener started", "addr", d.cfg.ListenAddr)
	return srv
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if v := d.lastRefresh.Load(); v != nil {
		resp.LastRefresh = v.(time.Time)
	}
	resp.ModelTrained = d.eng.Bundle().Meta.TrainedAt

	w.Header().Set("Content-Type", "application/json")
	if !d.healthy.Load() {
		resp.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		d.logger.Warn("healthz encode failed", "err", err)
	}
}
