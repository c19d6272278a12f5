// Package engine wires fetching, metric computation, scoring, model
// training and prediction into the operations the rest of the system
// calls. It owns the in-memory model bundle: training swaps it under a
// write lock, predictions read a snapshot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fuelcast/internal/bundle"
	"fuelcast/internal/config"
	"fuelcast/internal/customer"
	"fuelcast/internal/features"
	"fuelcast/internal/ml"
	"fuelcast/internal/scoring"
	"fuelcast/internal/source"
	"fuelcast/internal/storage"
)

// Sentinel errors surfaced by engine operations.
var (
	// ErrDataUnavailable means the transaction source returned nothing
	// for the requested window.
	ErrDataUnavailable = errors.New("transaction data unavailable")

	ErrModelNotTrained       = ml.ErrNotTrained
	ErrInsufficientData      = ml.ErrInsufficientData
	ErrFeatureSchemaMismatch = features.ErrSchemaMismatch
)

// Engine orchestrates the analytics pipeline.
type Engine struct {
	cfg    config.Config
	src    source.Source
	store  storage.Store // nil when run history is off
	logger *slog.Logger

	mu sync.RWMutex // guards b
	b  *bundle.Bundle

	trainMu sync.Mutex // serializes retraining
}

// New creates an engine around a transaction source. store may be nil.
func New(cfg config.Config, src source.Source, store storage.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		src:    src,
		store:  store,
		logger: logger,
		b:      &bundle.Bundle{},
	}
}

// LoadBundle restores the persisted model set, if any.
func (e *Engine) LoadBundle() error {
	b, err := bundle.Load(e.cfg.BundlePath)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.b = b
	e.mu.Unlock()
	e.logger.Info("bundle loaded",
		"path", e.cfg.BundlePath,
		"churn", b.Churn.Trained(),
		"revenue", b.Revenue.Trained(),
		"segments", b.Segments.Trained(),
		"anomaly", b.Anomaly.Trained())
	return nil
}

// Bundle returns the current model set snapshot.
func (e *Engine) Bundle() *bundle.Bundle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.b
}

func (e *Engine) scoringThresholds() scoring.Thresholds {
	return scoring.Thresholds{
		MediumScore:    e.cfg.ChurnMediumScore,
		HighScore:      e.cfg.ChurnHighScore,
		CLVHorizonDays: e.cfg.CLVHorizonDays,
		CLVDecayDays:   e.cfg.CLVDecayDays,
	}
}

func (e *Engine) constraintParams() ml.ConstraintParams {
	return ml.ConstraintParams{
		Ceiling:           e.cfg.RevenueCeiling,
		HistoricalCap:     e.cfg.HistoricalSpendCap,
		NewCustomerCap:    e.cfg.NewCustomerSpendCap,
		NewCustomerTxns:   e.cfg.NewCustomerTxns,
		InactiveAfterDays: e.cfg.InactiveAfterDays,
		HorizonDays:       e.cfg.InactivityHorizon,
		InactivityFloor:   e.cfg.InactivityFloor,
	}
}

// FetchTransactions pulls the configured recent window from the source.
func (e *Engine) FetchTransactions(ctx context.Context) ([]source.Transaction, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -e.cfg.WindowDays)
	txs, err := e.src.FetchTransactions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: no transactions in the last %d days", ErrDataUnavailable, e.cfg.WindowDays)
	}
	return txs, nil
}

// ComputeCustomerMetrics fetches the transaction window and returns the
// fully scored per-customer metrics table.
func (e *Engine) ComputeCustomerMetrics(ctx context.Context) ([]customer.Metrics, error) {
	txs, err := e.FetchTransactions(ctx)
	if err != nil {
		return nil, err
	}
	ms := customer.Compute(txs, source.ReferenceTime(txs))
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w: no customers with successful transactions", ErrDataUnavailable)
	}
	scoring.Apply(ms, e.scoringThresholds())
	e.logger.Info("metrics computed", "customers", len(ms), "transactions", len(txs))
	return ms, nil
}

// ChurnPrediction is one customer's model-based churn estimate.
type ChurnPrediction struct {
	CustomerID  int64   `json:"customer_id"`
	Probability float64 `json:"churn_probability"`
	Risk        string  `json:"risk"`
}

// PredictChurn runs the churn model over the metrics table.
func (e *Engine) PredictChurn(ms []customer.Metrics) ([]ChurnPrediction, error) {
	b := e.Bundle()
	probs, err := b.Churn.Predict(ms)
	if err != nil {
		return nil, err
	}
	out := make([]ChurnPrediction, len(ms))
	for i, p := range probs {
		risk := scoring.RiskLow
		switch {
		case p >= e.cfg.RiskHighProb:
			risk = scoring.RiskHigh
		case p >= e.cfg.RiskLowProb:
			risk = scoring.RiskMedium
		}
		out[i] = ChurnPrediction{CustomerID: ms[i].CustomerID, Probability: p, Risk: risk}
	}
	return out, nil
}

// RevenuePrediction is one customer's constrained revenue estimate.
type RevenuePrediction struct {
	CustomerID int64   `json:"customer_id"`
	Revenue6m  float64 `json:"predicted_revenue_6m"`
}

// PredictRevenue runs the revenue model; the output is already
// constrained, this is the only call site for the constrainer.
func (e *Engine) PredictRevenue(ms []customer.Metrics) ([]RevenuePrediction, error) {
	b := e.Bundle()
	preds, err := b.Revenue.Predict(ms, e.constraintParams())
	if err != nil {
		return nil, err
	}
	out := make([]RevenuePrediction, len(ms))
	for i, p := range preds {
		out[i] = RevenuePrediction{CustomerID: ms[i].CustomerID, Revenue6m: p}
	}
	return out, nil
}

// SegmentPrediction is one customer's corrected behavioral segment.
type SegmentPrediction struct {
	CustomerID int64  `json:"customer_id"`
	Segment    string `json:"segment"`
}

// segmentLabels is the single call site for clustering plus the
// new-customer correction. Every segment view derives from its output.
func (e *Engine) segmentLabels(ms []customer.Metrics) ([]string, error) {
	b := e.Bundle()
	labels, err := b.Segments.Predict(ms)
	if err != nil {
		return nil, err
	}
	return ml.CorrectSegments(ms, labels, ml.DefaultCorrectionParams()), nil
}

// PredictSegments returns the corrected segment per customer.
func (e *Engine) PredictSegments(ms []customer.Metrics) ([]SegmentPrediction, error) {
	labels, err := e.segmentLabels(ms)
	if err != nil {
		return nil, err
	}
	out := make([]SegmentPrediction, len(ms))
	for i, l := range labels {
		out[i] = SegmentPrediction{CustomerID: ms[i].CustomerID, Segment: l}
	}
	return out, nil
}

// SegmentStat summarizes one behavioral segment.
type SegmentStat struct {
	Segment      string  `json:"segment"`
	Customers    int     `json:"customers"`
	TotalSpent   float64 `json:"total_spent"`
	AvgSpent     float64 `json:"avg_spent"`
	AvgRecency   float64 `json:"avg_recency_days"`
	AvgFrequency float64 `json:"avg_frequency"`
}

// SegmentSummary aggregates the corrected segment table.
func (e *Engine) SegmentSummary(ms []customer.Metrics) ([]SegmentStat, error) {
	labels, err := e.segmentLabels(ms)
	if err != nil {
		return nil, err
	}
	byName := map[string]*SegmentStat{}
	var order []string
	for i, m := range ms {
		s, ok := byName[labels[i]]
		if !ok {
			s = &SegmentStat{Segment: labels[i]}
			byName[labels[i]] = s
			order = append(order, labels[i])
		}
		s.Customers++
		s.TotalSpent += m.TotalSpent
		s.AvgRecency += m.RecencyDays
		s.AvgFrequency += m.Frequency
	}
	out := make([]SegmentStat, 0, len(order))
	for _, name := range order {
		s := byName[name]
		n := float64(s.Customers)
		s.AvgSpent = s.TotalSpent / n
		s.AvgRecency /= n
		s.AvgFrequency /= n
		out = append(out, *s)
	}
	return out, nil
}

// SegmentMembers returns up to limit customers in the named segment.
// Filtering happens before the limit so the cut never hides members of
// the requested segment behind members of others.
func (e *Engine) SegmentMembers(ms []customer.Metrics, name string, limit int) ([]customer.Metrics, error) {
	labels, err := e.segmentLabels(ms)
	if err != nil {
		return nil, err
	}
	var members []customer.Metrics
	for i, m := range ms {
		if labels[i] != name {
			continue
		}
		m.Segment = name
		members = append(members, m)
	}
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

// DetectAnomalies scores the given transactions with the anomaly model.
func (e *Engine) DetectAnomalies(txs []source.Transaction) ([]ml.AnomalyResult, error) {
	return e.Bundle().Anomaly.Detect(txs)
}

// TrainingReport summarizes one training run.
type TrainingReport struct {
	RunID        string        `json:"run_id"`
	Customers    int           `json:"customers"`
	Transactions int           `json:"transactions"`
	Duration     time.Duration `json:"duration"`

	ChurnAccuracy float64 `json:"churn_accuracy"`
	RevenueMAE    float64 `json:"revenue_mae"`
	SegmentCount  int     `json:"segment_count"`
	AnomalyRate   float64 `json:"anomaly_rate"`
}

// trainSelection picks which models a training run refits. Unselected
// models are carried over from the current bundle unchanged.
type trainSelection struct {
	churn, revenue, segments, anomaly bool
}

func selectAll() trainSelection { return trainSelection{true, true, true, true} }

// TrainAll retrains every model on the configured window and persists
// the bundle. The previous bundle stays in place, in memory and on
// disk, unless every fit succeeds.
func (e *Engine) TrainAll(ctx context.Context, trigger storage.Trigger) (*TrainingReport, error) {
	return e.train(ctx, trigger, selectAll())
}

// TrainChurn refits only the churn classifier.
func (e *Engine) TrainChurn(ctx context.Context) (*TrainingReport, error) {
	return e.train(ctx, storage.TriggerManual, trainSelection{churn: true})
}

// TrainRevenue refits only the revenue regressor.
func (e *Engine) TrainRevenue(ctx context.Context) (*TrainingReport, error) {
	return e.train(ctx, storage.TriggerManual, trainSelection{revenue: true})
}

// TrainSegmentation refits only the segmentation clusterer.
func (e *Engine) TrainSegmentation(ctx context.Context) (*TrainingReport, error) {
	return e.train(ctx, storage.TriggerManual, trainSelection{segments: true})
}

// TrainAnomaly refits only the anomaly detector.
func (e *Engine) TrainAnomaly(ctx context.Context) (*TrainingReport, error) {
	return e.train(ctx, storage.TriggerManual, trainSelection{anomaly: true})
}

func (e *Engine) train(ctx context.Context, trigger storage.Trigger, sel trainSelection) (*TrainingReport, error) {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	runID := uuid.NewString()
	started := time.Now()
	e.recordRunStart(runID, trigger)

	report, err := e.trainSelected(ctx, runID, started, sel)
	e.recordRunEnd(runID, report, err)
	if err != nil {
		e.logger.Error("training failed", "run_id", runID, "err", err)
		return nil, err
	}
	e.logger.Info("training complete",
		"run_id", runID,
		"customers", report.Customers,
		"duration", report.Duration,
		"churn_accuracy", report.ChurnAccuracy)
	return report, nil
}

func (e *Engine) trainSelected(ctx context.Context, runID string, started time.Time, sel trainSelection) (*TrainingReport, error) {
	txs, err := e.FetchTransactions(ctx)
	if err != nil {
		return nil, err
	}
	ms := customer.Compute(txs, source.ReferenceTime(txs))
	scoring.Apply(ms, e.scoringThresholds())

	minSamples := e.cfg.MinTrainingSamples

	// Start from a copy of the current bundle so a partial refit keeps
	// the other models intact.
	b := &bundle.Bundle{}
	*b = *e.Bundle()

	report := &TrainingReport{
		RunID:        runID,
		Customers:    len(ms),
		Transactions: len(txs),
	}

	if sel.churn {
		var churn ml.ChurnModel
		if err := churn.Train(ms, e.cfg.ChurnLabelDays, minSamples); err != nil {
			return nil, err
		}
		b.Churn = &churn
		report.ChurnAccuracy = churn.Accuracy
	}
	if sel.revenue {
		var revenue ml.RevenueModel
		if err := revenue.Train(ms, minSamples, e.constraintParams()); err != nil {
			return nil, err
		}
		b.Revenue = &revenue
		report.RevenueMAE = revenue.MAE
	}
	if sel.segments {
		var segments ml.SegmentModel
		if err := segments.Train(ms, e.cfg.SegmentClusters, minSamples); err != nil {
			return nil, err
		}
		b.Segments = &segments
		report.SegmentCount = len(segments.Names)
	}
	if sel.anomaly {
		var anomaly ml.AnomalyModel
		if err := anomaly.Train(txs, e.cfg.Contamination, minSamples); err != nil {
			return nil, err
		}
		b.Anomaly = &anomaly
		report.AnomalyRate = e.cfg.Contamination
	}

	b.FeatureColumns = append([]string(nil), features.Columns...)
	b.Meta = bundle.Meta{
		TrainedAt:    time.Now().UTC(),
		Customers:    len(ms),
		Transactions: len(txs),
		WindowDays:   e.cfg.WindowDays,
	}
	if err := bundle.Save(e.cfg.BundlePath, b); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.b = b
	e.mu.Unlock()

	report.Duration = time.Since(started)
	return report, nil
}

func (e *Engine) recordRunStart(runID string, trigger storage.Trigger) {
	if e.store == nil {
		return
	}
	err := e.store.InsertRun(&storage.TrainingRun{
		ID:         runID,
		TSStart:    time.Now().UnixMilli(),
		Status:     storage.RunRunning,
		Trigger:    trigger,
		WindowDays: e.cfg.WindowDays,
	})
	if err != nil {
		e.logger.Warn("run history insert failed", "err", err)
	}
}

func (e *Engine) recordRunEnd(runID string, report *TrainingReport, trainErr error) {
	if e.store == nil {
		return
	}
	end := time.Now().UnixMilli()
	upd := storage.RunUpdate{TSEnd: &end}
	if trainErr != nil {
		status := storage.RunError
		msg := trainErr.Error()
		upd.Status = &status
		upd.Error = &msg
	} else {
		status := storage.RunSuccess
		upd.Status = &status
		upd.Customers = &report.Customers
		upd.Transactions = &report.Transactions
		upd.ChurnAccuracy = &report.ChurnAccuracy
		upd.RevenueMAE = &report.RevenueMAE
		upd.SegmentCount = &report.SegmentCount
		upd.AnomalyRate = &report.AnomalyRate
	}
	if err := e.store.UpdateRun(runID, upd); err != nil {
		e.logger.Warn("run history update failed", "err", err)
	}
}
