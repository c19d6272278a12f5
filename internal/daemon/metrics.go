package daemon

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the analytics daemon.
type Metrics struct {
	customersTotal    prometheus.Gauge
	highRiskCustomers prometheus.Gauge
	avgChurnScore     prometheus.Gauge
	modelTrainedAt    prometheus.Gauge
	sourceHealthy     prometheus.Gauge

	refreshesTotal  *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	trainingsTotal  *prometheus.CounterVec
	trainingSeconds prometheus.Histogram
	alertsTotal     *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// NewMetrics creates the metrics collector. Registration happens once
// per process; repeated calls return the same instance.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			customersTotal: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "fuelcast_customers_total",
					Help: "Customers seen in the current analysis window",
				},
			),
			highRiskCustomers: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "fuelcast_customers_high_risk",
					Help: "Customers in the High Risk churn tier",
				},
			),
			avgChurnScore: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "fuelcast_churn_score_avg",
					Help: "Mean rule-based churn score across the window",
				},
			),
			modelTrainedAt: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "fuelcast_model_trained_timestamp_seconds",
					Help: "Unix time the current model bundle was trained (0 = untrained)",
				},
			),
			sourceHealthy: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "fuelcast_source_healthy",
					Help: "Transaction source health (1 = last fetch succeeded)",
				},
			),
			refreshesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fuelcast_refreshes_total",
					Help: "Total metric refresh sweeps by outcome",
				},
				[]string{"status"},
			),
			refreshDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "fuelcast_refresh_duration_seconds",
					Help:    "Refresh sweep duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
			),
			trainingsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fuelcast_training_runs_total",
					Help: "Total training runs by outcome",
				},
				[]string{"status"},
			),
			trainingSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "fuelcast_training_duration_seconds",
					Help:    "Training run duration in seconds",
					Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
				},
			),
			alertsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fuelcast_alerts_total",
					Help: "Alerts raised by the monitor sweep",
				},
				[]string{"kind", "severity"},
			),
		}
	})
	return metricsInst
}

// RecordRefresh records one metric refresh sweep.
func (m *Metrics) RecordRefresh(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.refreshesTotal.WithLabelValues(status).Inc()
	m.refreshDuration.Observe(duration.Seconds())
	m.UpdateSourceHealth(ok)
}

// RecordTraining records one training run.
func (m *Metrics) RecordTraining(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.trainingsTotal.WithLabelValues(status).Inc()
	m.trainingSeconds.Observe(duration.Seconds())
}

// RecordAlert records one raised alert.
func (m *Metrics) RecordAlert(kind, severity string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(kind, severity).Inc()
}

// UpdateCustomerStats updates the per-window customer gauges.
func (m *Metrics) UpdateCustomerStats(total, highRisk int, avgScore float64) {
	if m == nil {
		return
	}
	m.customersTotal.Set(float64(total))
	m.highRiskCustomers.Set(float64(highRisk))
	m.avgChurnScore.Set(avgScore)
}

// UpdateModelTrainedAt updates the bundle freshness gauge.
func (m *Metrics) UpdateModelTrainedAt(t time.Time) {
	if m == nil {
		return
	}
	if t.IsZero() {
		m.modelTrainedAt.Set(0)
		return
	}
	m.modelTrainedAt.Set(float64(t.Unix()))
}

// UpdateSourceHealth updates the source health gauge.
func (m *Metrics) UpdateSourceHealth(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.sourceHealthy.Set(1)
	} else {
		m.sourceHealthy.Set(0)
	}
}
