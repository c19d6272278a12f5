//go:build !mips64 && !mips64le && !ppc64 && !s390x

package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    ts_start INTEGER NOT NULL,
    ts_end INTEGER,
    status TEXT NOT NULL DEFAULT 'running',
    trigger_kind TEXT,

    customers INTEGER DEFAULT 0,
    transactions INTEGER DEFAULT 0,
    window_days INTEGER DEFAULT 0,

    churn_accuracy REAL DEFAULT 0,
    revenue_mae REAL DEFAULT 0,
    segment_count INTEGER DEFAULT 0,
    anomaly_rate REAL DEFAULT 0,

    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_ts_start ON training_runs(ts_start);
CREATE INDEX IF NOT EXISTS idx_runs_status_ts ON training_runs(status, ts_start);

CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    ts INTEGER NOT NULL,
    customer_id INTEGER DEFAULT 0,
    severity TEXT NOT NULL,
    kind TEXT NOT NULL,
    message TEXT,
    value REAL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts);
CREATE INDEX IF NOT EXISTS idx_alerts_severity_ts ON alerts(severity, ts);
`

// SQLiteStore implements Store using SQLite with WAL mode.
type SQLiteStore struct {
	db      *sql.DB
	maxRows int
	pruneMu sync.Mutex
	logger  *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// It enables WAL mode for better concurrent performance.
func NewSQLiteStore(path string, maxRows int, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteStore{db: db, maxRows: maxRows, logger: logger}, nil
}

// InsertRun creates a new run record.
func (s *SQLiteStore) InsertRun(run *TrainingRun) error {
	_, err := s.db.Exec(`
		INSERT INTO training_runs (
			id, ts_start, ts_end, status, trigger_kind,
			customers, transactions, window_days,
			churn_accuracy, revenue_mae, segment_count, anomaly_rate, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.TSStart, run.TSEnd, run.Status, run.Trigger,
		run.Customers, run.Transactions, run.WindowDays,
		run.ChurnAccuracy, run.RevenueMAE, run.SegmentCount, run.AnomalyRate, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	// Best effort, non-blocking.
	go s.maybePrune()

	return nil
}

// UpdateRun modifies an existing run.
func (s *SQLiteStore) UpdateRun(id string, upd RunUpdate) error {
	var sets []string
	var args []any

	if upd.TSEnd != nil {
		sets = append(sets, "ts_end = ?")
		args = append(args, *upd.TSEnd)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Customers != nil {
		sets = append(sets, "customers = ?")
		args = append(args, *upd.Customers)
	}
	if upd.Transactions != nil {
		sets = append(sets, "transactions = ?")
		args = append(args, *upd.Transactions)
	}
	if upd.ChurnAccuracy != nil {
		sets = append(sets, "churn_accuracy = ?")
		args = append(args, *upd.ChurnAccuracy)
	}
	if upd.RevenueMAE != nil {
		sets = append(sets, "revenue_mae = ?")
		args = append(args, *upd.RevenueMAE)
	}
	if upd.SegmentCount != nil {
		sets = append(sets, "segment_count = ?")
		args = append(args, *upd.SegmentCount)
	}
	if upd.AnomalyRate != nil {
		sets = append(sets, "anomaly_rate = ?")
		args = append(args, *upd.AnomalyRate)
	}
	if upd.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *upd.Error)
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE training_runs SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

const runColumns = `id, ts_start, ts_end, status, trigger_kind,
	customers, transactions, window_days,
	churn_accuracy, revenue_mae, segment_count, anomaly_rate, error`

// GetRun retrieves a single run.
func (s *SQLiteStore) GetRun(id string) (*TrainingRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM training_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs with filtering.
func (s *SQLiteStore) ListRuns(opts ListOptions) ([]TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs WHERE 1=1`
	var args []any

	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*opts.Status))
	}
	if opts.Window > 0 {
		cutoff := time.Now().UnixMilli() - opts.Window.Milliseconds()
		query += " AND ts_start >= ?"
		args = append(args, cutoff)
	}

	query += " ORDER BY ts_start DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// InsertAlert records a flagged condition.
func (s *SQLiteStore) InsertAlert(a *Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, ts, customer_id, severity, kind, message, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TS, a.CustomerID, a.Severity, a.Kind, a.Message, a.Value)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	go s.maybePrune()
	return nil
}

// ListAlerts retrieves alerts with filtering.
func (s *SQLiteStore) ListAlerts(opts AlertOptions) ([]Alert, error) {
	query := `SELECT id, ts, customer_id, severity, kind, message, value FROM alerts WHERE 1=1`
	var args []any

	if opts.Severity != nil {
		query += " AND severity = ?"
		args = append(args, string(*opts.Severity))
	}
	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, opts.Kind)
	}
	if opts.Window > 0 {
		cutoff := time.Now().UnixMilli() - opts.Window.Milliseconds()
		query += " AND ts >= ?"
		args = append(args, cutoff)
	}

	query += " ORDER BY ts DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var msg sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.CustomerID, &a.Severity, &a.Kind, &msg, &a.Value); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Message = msg.String
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Overview returns aggregate statistics.
func (s *SQLiteStore) Overview(window time.Duration) (*Overview, error) {
	cutoff := time.Now().UnixMilli() - window.Milliseconds()

	row := s.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) as success_count,
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END) as error_count,
			COALESCE(AVG(CASE WHEN ts_end IS NOT NULL THEN ts_end - ts_start END), 0) as avg_duration,
			MAX(CASE WHEN status = 'success' THEN ts_start END) as last_success
		FROM training_runs
		WHERE ts_start >= ?
	`, cutoff)

	var o Overview
	var avgDur float64
	var lastSuccess sql.NullInt64
	if err := row.Scan(&o.TotalRuns, &o.SuccessCount, &o.ErrorCount, &avgDur, &lastSuccess); err != nil {
		return nil, fmt.Errorf("overview query: %w", err)
	}
	o.AvgDurationMs = int(avgDur)
	if o.TotalRuns > 0 {
		o.SuccessRate = float64(o.SuccessCount) / float64(o.TotalRuns)
	}
	if lastSuccess.Valid {
		o.LastSuccess = &lastSuccess.Int64
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE ts >= ?`, cutoff).Scan(&o.AlertCount); err != nil {
		return nil, fmt.Errorf("alert count query: %w", err)
	}
	return &o, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// maybePrune deletes the oldest rows once either table exceeds maxRows.
func (s *SQLiteStore) maybePrune() {
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	for _, t := range []struct{ table, order string }{
		{"training_runs", "ts_start"},
		{"alerts", "ts"},
	} {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + t.table).Scan(&count); err != nil {
			s.logger.Error("prune count query failed", "table", t.table, "err", err)
			continue
		}
		if count <= s.maxRows {
			continue
		}
		toDelete := count - s.maxRows
		const batchSize = 500
		if toDelete > batchSize {
			toDelete = batchSize
		}
		_, err := s.db.Exec(fmt.Sprintf(`
			DELETE FROM %s WHERE id IN (
				SELECT id FROM %s ORDER BY %s ASC LIMIT ?
			)
		`, t.table, t.table, t.order), toDelete)
		if err != nil {
			s.logger.Error("prune failed", "table", t.table, "err", err)
		} else {
			s.logger.Debug("pruned old rows", "table", t.table, "deleted", toDelete)
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*TrainingRun, error) {
	var run TrainingRun
	var tsEnd sql.NullInt64
	var trigger, errStr sql.NullString

	err := row.Scan(
		&run.ID, &run.TSStart, &tsEnd, &run.Status, &trigger,
		&run.Customers, &run.Transactions, &run.WindowDays,
		&run.ChurnAccuracy, &run.RevenueMAE, &run.SegmentCount, &run.AnomalyRate, &errStr,
	)
	if err != nil {
		return nil, err
	}
	if tsEnd.Valid {
		run.TSEnd = &tsEnd.Int64
	}
	run.Trigger = Trigger(trigger.String)
	run.Error = errStr.String
	return &run, nil
}
