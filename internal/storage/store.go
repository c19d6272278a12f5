// Package storage persists training run history and operational
// alerts. Runs record when models were retrained and how they scored;
// alerts record customers the monitor flagged. No transaction content
// is stored here, only derived results.
package storage

import (
	"time"
)

// RunStatus represents the final status of a training run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// TrainingRun is one retraining attempt and its outcome.
type TrainingRun struct {
	ID      string    `json:"id"`
	TSStart int64     `json:"ts_start"` // unix ms
	TSEnd   *int64    `json:"ts_end"`   // nullable until complete
	Status  RunStatus `json:"status"`
	Trigger Trigger   `json:"trigger"`

	// Input shape
	Customers    int `json:"customers"`
	Transactions int `json:"transactions"`
	WindowDays   int `json:"window_days"`

	// Per-model outcomes
	ChurnAccuracy float64 `json:"churn_accuracy"`
	RevenueMAE    float64 `json:"revenue_mae"`
	SegmentCount  int     `json:"segment_count"`
	AnomalyRate   float64 `json:"anomaly_rate"`

	Error string `json:"error,omitempty"`
}

// RunUpdate contains fields settable after insert.
type RunUpdate struct {
	TSEnd         *int64
	Status        *RunStatus
	Customers     *int
	Transactions  *int
	ChurnAccuracy *float64
	RevenueMAE    *float64
	SegmentCount  *int
	AnomalyRate   *float64
	Error         *string
}

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// Alert kinds raised by the monitor.
const (
	AlertChurnRisk       = "churn_risk"
	AlertPaymentFailures = "payment_failures"
	AlertAnomaly         = "anomaly"
	AlertHealth          = "health"
)

// Alert is one flagged condition for a customer or the platform.
type Alert struct {
	ID         string        `json:"id"`
	TS         int64         `json:"ts"` // unix ms
	CustomerID int64         `json:"customer_id,omitempty"`
	Severity   AlertSeverity `json:"severity"`
	Kind       string        `json:"kind"`
	Message    string        `json:"message"`
	Value      float64       `json:"value"`
}

// ListOptions filters for listing runs.
type ListOptions struct {
	Limit  int
	Offset int
	Status *RunStatus
	Window time.Duration // only runs started within this window
}

// AlertOptions filters for listing alerts.
type AlertOptions struct {
	Limit    int
	Severity *AlertSeverity
	Kind     string
	Window   time.Duration
}

// Overview contains run statistics for a time window.
type Overview struct {
	TotalRuns     int     `json:"total_runs"`
	SuccessCount  int     `json:"success_count"`
	ErrorCount    int     `json:"error_count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs int     `json:"avg_duration_ms"`
	LastSuccess   *int64  `json:"last_success,omitempty"` // unix ms
	AlertCount    int     `json:"alert_count"`
}

// Store is the interface for run and alert history.
type Store interface {
	// InsertRun creates a new run record (at run start).
	InsertRun(run *TrainingRun) error

	// UpdateRun modifies an existing run (at completion).
	UpdateRun(id string, upd RunUpdate) error

	// GetRun retrieves a single run by ID; nil when absent.
	GetRun(id string) (*TrainingRun, error)

	// ListRuns retrieves runs with filtering, newest first.
	ListRuns(opts ListOptions) ([]TrainingRun, error)

	// InsertAlert records a flagged condition.
	InsertAlert(a *Alert) error

	// ListAlerts retrieves alerts with filtering, newest first.
	ListAlerts(opts AlertOptions) ([]Alert, error)

	// Overview returns aggregate statistics for a time window.
	Overview(window time.Duration) (*Overview, error)

	// Close releases resources.
	Close() error
}
