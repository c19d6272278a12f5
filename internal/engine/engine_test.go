package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fuelcast/internal/config"
	"fuelcast/internal/customer"
	"fuelcast/internal/source"
	"fuelcast/internal/storage"
)

// fakeSource serves a fixed transaction set regardless of window.
type fakeSource struct {
	txs []source.Transaction
}

func (f *fakeSource) FetchTransactions(ctx context.Context, from, to time.Time) ([]source.Transaction, error) {
	return f.txs, nil
}

func (f *fakeSource) Close() error { return nil }

// fixtureTransactions builds customers in two behavior groups: half
// active recently, half silent for over a month.
func fixtureTransactions(customers int) []source.Transaction {
	ref := time.Now().Add(-24 * time.Hour)
	var txs []source.Transaction
	id := int64(1)
	for c := 0; c < customers; c++ {
		last := ref.Add(-time.Duration(c%5) * 24 * time.Hour) // active
		perTx := 20000 + float64(c%7)*2500
		if c%2 == 1 {
			last = ref.Add(-time.Duration(40+c%15) * 24 * time.Hour) // lapsed
			perTx = 12000
		}
		for k := 0; k < 5; k++ {
			created := last.Add(-time.Duration(k*9) * 24 * time.Hour)
			txs = append(txs, source.Transaction{
				ID:         id,
				CustomerID: int64(c + 1),
				StationID:  int64(1 + c%4),
				Channel:    "APP",
				FuelType:   "PETROL",
				Liters:     15 + float64(k),
				UnitPrice:  1300,
				Amount:     perTx,
				Status:     source.StatusSuccess,
				CreatedAt:  created,
			})
			id++
		}
	}
	return txs
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.BundlePath = filepath.Join(t.TempDir(), "models.json")
	cfg.SegmentClusters = 2
	return cfg
}

func newTestEngine(t *testing.T, txs []source.Transaction) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(100)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(testConfig(t), &fakeSource{txs: txs}, store, logger), store
}

func TestComputeCustomerMetrics(t *testing.T) {
	e, _ := newTestEngine(t, fixtureTransactions(60))
	ms, err := e.ComputeCustomerMetrics(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(ms) != 60 {
		t.Fatalf("got %d customers, want 60", len(ms))
	}
	// Scoring ran: every row has a churn tier and a segment.
	for _, m := range ms {
		if m.ChurnRisk == "" || m.Segment == "" {
			t.Fatalf("unscored row: %+v", m)
		}
	}
}

func TestComputeCustomerMetricsEmptySource(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.ComputeCustomerMetrics(context.Background())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestTrainAllAndPredict(t *testing.T) {
	e, store := newTestEngine(t, fixtureTransactions(60))
	ctx := context.Background()

	report, err := e.TrainAll(ctx, storage.TriggerManual)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.Customers != 60 {
		t.Errorf("report customers = %d, want 60", report.Customers)
	}
	if report.SegmentCount != 2 {
		t.Errorf("segment count = %d, want 2", report.SegmentCount)
	}
	if _, err := os.Stat(e.cfg.BundlePath); err != nil {
		t.Errorf("bundle not persisted: %v", err)
	}

	ms, err := e.ComputeCustomerMetrics(ctx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	churn, err := e.PredictChurn(ms)
	if err != nil {
		t.Fatalf("predict churn: %v", err)
	}
	if len(churn) != 60 {
		t.Fatalf("got %d churn predictions", len(churn))
	}
	for _, p := range churn {
		if p.Probability < 0 || p.Probability > 1 || p.Risk == "" {
			t.Fatalf("bad prediction: %+v", p)
		}
	}

	revenue, err := e.PredictRevenue(ms)
	if err != nil {
		t.Fatalf("predict revenue: %v", err)
	}
	for i, p := range revenue {
		if p.Revenue6m < 0 || p.Revenue6m > e.cfg.HistoricalSpendCap*ms[i].TotalSpent+1e-6 {
			t.Fatalf("unconstrained revenue %v for customer %d", p.Revenue6m, p.CustomerID)
		}
	}

	segs, err := e.PredictSegments(ms)
	if err != nil {
		t.Fatalf("predict segments: %v", err)
	}
	if len(segs) != 60 {
		t.Fatalf("got %d segment predictions", len(segs))
	}

	// Run history closed out as success.
	runs, err := store.ListRuns(storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != storage.RunSuccess {
		t.Errorf("run history: %+v", runs)
	}
	if runs[0].ID != report.RunID {
		t.Errorf("run id %s != report id %s", runs[0].ID, report.RunID)
	}
}

func TestTrainChurnKeepsOtherModels(t *testing.T) {
	e, store := newTestEngine(t, fixtureTransactions(60))
	ctx := context.Background()

	// Only the churn model is refit; the rest stay untrained.
	report, err := e.TrainChurn(ctx)
	if err != nil {
		t.Fatalf("train churn: %v", err)
	}
	if report.ChurnAccuracy <= 0 {
		t.Errorf("churn accuracy = %v, want > 0", report.ChurnAccuracy)
	}
	if report.SegmentCount != 0 || report.RevenueMAE != 0 {
		t.Errorf("partial refit reported other models: %+v", report)
	}

	ms, err := e.ComputeCustomerMetrics(ctx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if _, err := e.PredictChurn(ms); err != nil {
		t.Errorf("churn should be trained: %v", err)
	}
	if _, err := e.PredictRevenue(ms); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("revenue err = %v, want ErrModelNotTrained", err)
	}
	if _, err := e.PredictSegments(ms); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("segments err = %v, want ErrModelNotTrained", err)
	}

	// A following full run fills in the rest without losing churn.
	if _, err := e.TrainAll(ctx, storage.TriggerScheduled); err != nil {
		t.Fatalf("train all: %v", err)
	}
	if _, err := e.PredictRevenue(ms); err != nil {
		t.Errorf("revenue after full train: %v", err)
	}

	runs, err := store.ListRuns(storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}

func TestSegmentViewsShareCorrectedTable(t *testing.T) {
	e, _ := newTestEngine(t, fixtureTransactions(60))
	ctx := context.Background()
	if _, err := e.TrainAll(ctx, storage.TriggerManual); err != nil {
		t.Fatalf("train: %v", err)
	}
	ms, err := e.ComputeCustomerMetrics(ctx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	summary, err := e.SegmentSummary(ms)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	total := 0
	for _, s := range summary {
		total += s.Customers
		members, err := e.SegmentMembers(ms, s.Segment, 0)
		if err != nil {
			t.Fatalf("members(%s): %v", s.Segment, err)
		}
		if len(members) != s.Customers {
			t.Errorf("segment %q: summary says %d, members returns %d", s.Segment, s.Customers, len(members))
		}
	}
	if total != 60 {
		t.Errorf("summary covers %d customers, want 60", total)
	}
}

func TestSegmentMembersLimitAfterFilter(t *testing.T) {
	e, _ := newTestEngine(t, fixtureTransactions(60))
	ctx := context.Background()
	if _, err := e.TrainAll(ctx, storage.TriggerManual); err != nil {
		t.Fatalf("train: %v", err)
	}
	ms, err := e.ComputeCustomerMetrics(ctx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	summary, err := e.SegmentSummary(ms)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	name := summary[0].Segment
	members, err := e.SegmentMembers(ms, name, 2)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) > 2 {
		t.Fatalf("limit ignored: %d members", len(members))
	}
	for _, m := range members {
		if m.Segment != name {
			t.Errorf("member of %q labeled %q", name, m.Segment)
		}
	}
}

func TestPredictBeforeTraining(t *testing.T) {
	e, _ := newTestEngine(t, fixtureTransactions(60))
	ms := []customer.Metrics{{CustomerID: 1, TotalSpent: 100000, TransactionCount: 5}}

	if _, err := e.PredictChurn(ms); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("churn err = %v, want ErrModelNotTrained", err)
	}
	if _, err := e.PredictRevenue(ms); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("revenue err = %v, want ErrModelNotTrained", err)
	}
	if _, err := e.PredictSegments(ms); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("segments err = %v, want ErrModelNotTrained", err)
	}
	if _, err := e.DetectAnomalies(nil); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("anomaly err = %v, want ErrModelNotTrained", err)
	}
}

func TestTrainFailureLeavesNoBundle(t *testing.T) {
	// Too few customers for any model to train.
	e, store := newTestEngine(t, fixtureTransactions(10))
	_, err := e.TrainAll(context.Background(), storage.TriggerScheduled)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if _, statErr := os.Stat(e.cfg.BundlePath); !os.IsNotExist(statErr) {
		t.Error("failed training wrote a bundle")
	}
	runs, _ := store.ListRuns(storage.ListOptions{})
	if len(runs) != 1 || runs[0].Status != storage.RunError {
		t.Errorf("run history: %+v", runs)
	}
	if runs[0].Error == "" {
		t.Error("failed run missing error message")
	}
}

func TestLoadBundleMissingFile(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	if err := e.LoadBundle(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.Bundle().Churn.Trained() {
		t.Error("fresh engine reports trained churn model")
	}
}
