package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"fuelcast/internal/config"
	"fuelcast/internal/engine"
	"fuelcast/internal/source"
	"fuelcast/internal/storage"
)

type stubSource struct {
	txs []source.Transaction
}

func (s *stubSource) FetchTransactions(ctx context.Context, from, to time.Time) ([]source.Transaction, error) {
	return s.txs, nil
}

func (s *stubSource) Close() error { return nil }

func stubTransactions() []source.Transaction {
	ref := time.Now().Add(-time.Hour)
	var txs []source.Transaction
	id := int64(1)
	for c := 0; c < 20; c++ {
		last := ref.Add(-time.Duration(c%4) * 24 * time.Hour)
		if c%2 == 1 {
			// Half the customers have been silent long enough to trip
			// the churn score alert.
			last = ref.Add(-time.Duration(50+c) * 24 * time.Hour)
		}
		for k := 0; k < 3; k++ {
			txs = append(txs, source.Transaction{
				ID:         id,
				CustomerID: int64(c + 1),
				StationID:  1,
				Channel:    "APP",
				Liters:     20,
				UnitPrice:  1300,
				Amount:     26000,
				Status:     source.StatusSuccess,
				CreatedAt:  last.Add(-time.Duration(k*8) * 24 * time.Hour),
			})
			id++
		}
	}
	return txs
}

func newTestDaemon(t *testing.T, txs []source.Transaction) (*Daemon, *storage.MemoryStore) {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.BundlePath = filepath.Join(t.TempDir(), "models.json")
	store := storage.NewMemoryStore(100)
	eng := engine.New(cfg, &stubSource{txs: txs}, store, nil)
	return New(cfg, eng, store, NewMetrics(), nil), store
}

func TestRefreshMarksHealthyAndStoresAlerts(t *testing.T) {
	d, store := newTestDaemon(t, stubTransactions())

	d.refresh(context.Background())
	if !d.healthy.Load() {
		t.Fatal("daemon unhealthy after successful refresh")
	}
	if d.lastRefresh.Load() == nil {
		t.Fatal("last refresh not recorded")
	}

	// Lapsed customers score high enough to raise churn alerts.
	alerts, err := store.ListAlerts(storage.AlertOptions{Kind: storage.AlertChurnRisk})
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) == 0 {
		t.Error("no churn alerts stored for lapsed customers")
	}
}

func TestRefreshFailureMarksUnhealthy(t *testing.T) {
	d, _ := newTestDaemon(t, nil) // empty source fails the fetch
	d.refresh(context.Background())
	if d.healthy.Load() {
		t.Fatal("daemon healthy after failed refresh")
	}
}

func TestHealthzDegradedBeforeFirstRefresh(t *testing.T) {
	d, _ := newTestDaemon(t, stubTransactions())

	rec := httptest.NewRecorder()
	d.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	d.refresh(context.Background())

	rec = httptest.NewRecorder()
	d.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status after refresh = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if resp.Status != "ok" || resp.LastRefresh.IsZero() {
		t.Errorf("healthz body: %+v", resp)
	}
}

func TestMonitorThresholdsFollowConfig(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	d.cfg.AlertChurnScore = 80
	d.cfg.FailureRateAlert = 0.5
	th := d.monitorThresholds()
	if th.AlertChurnScore != 80 || th.AlertFailureRate != 0.5 {
		t.Errorf("thresholds = %+v", th)
	}
}
