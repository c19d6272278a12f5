// Package bundle persists the trained model set as a single JSON
// document. All four models travel together with the feature column
// order they were trained against, so a loaded bundle is either usable
// as a unit or rejected per-model at prediction time.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"fuelcast/internal/ml"
)

// Meta records where a bundle came from.
type Meta struct {
	TrainedAt    time.Time `json:"trained_at"`
	Customers    int       `json:"customers"`
	Transactions int       `json:"transactions"`
	WindowDays   int       `json:"window_days"`
}

// Bundle is the persisted model set. Any slot may be nil: a model that
// failed to train is simply absent, and predictions against it report
// not-trained rather than poisoning the others.
type Bundle struct {
	Churn    *ml.ChurnModel   `json:"churn_model,omitempty"`
	Revenue  *ml.RevenueModel `json:"revenue_model,omitempty"`
	Segments *ml.SegmentModel `json:"segmentation_model,omitempty"`
	Anomaly  *ml.AnomalyModel `json:"anomaly_model,omitempty"`

	FeatureColumns []string `json:"feature_column_order,omitempty"`
	Meta           Meta     `json:"metadata"`
}

// Save writes the bundle atomically: marshal to a temp file in the
// target directory, then rename over the destination. A crash mid-write
// leaves the previous bundle intact.
func Save(path string, b *Bundle) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bundle: create dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("bundle: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("bundle: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("bundle: rename: %w", err)
	}
	return nil
}

// Load reads a bundle from disk. A missing file yields an empty bundle,
// not an error: a fresh deployment simply has no models yet. Unknown
// fields in older or newer bundle files are ignored.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Bundle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bundle: read: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: parse %s: %w", path, err)
	}
	return &b, nil
}
