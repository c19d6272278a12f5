package storage

import (
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory ring buffers. Used when
// STORAGE=memory or as a fallback when sqlite is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    []TrainingRun
	byID    map[string]int // ID -> index in runs
	alerts  []Alert
	maxRows int
	head    int // next write position in runs
	count   int
	aHead   int // next write position in alerts
	aCount  int
}

// NewMemoryStore creates a new in-memory store holding at most maxRows
// of each record type.
func NewMemoryStore(maxRows int) *MemoryStore {
	return &MemoryStore{
		runs:    make([]TrainingRun, maxRows),
		alerts:  make([]Alert, maxRows),
		byID:    make(map[string]int),
		maxRows: maxRows,
	}
}

// InsertRun adds a new run to the store.
func (s *MemoryStore) InsertRun(run *TrainingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Overwriting drops the evicted ID from the index.
	if s.count == s.maxRows {
		delete(s.byID, s.runs[s.head].ID)
	}
	s.runs[s.head] = *run
	s.byID[run.ID] = s.head
	s.head = (s.head + 1) % s.maxRows
	if s.count < s.maxRows {
		s.count++
	}
	return nil
}

// UpdateRun modifies an existing run. Unknown IDs are ignored.
func (s *MemoryStore) UpdateRun(id string, upd RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil
	}
	run := &s.runs[idx]
	if upd.TSEnd != nil {
		run.TSEnd = upd.TSEnd
	}
	if upd.Status != nil {
		run.Status = *upd.Status
	}
	if upd.Customers != nil {
		run.Customers = *upd.Customers
	}
	if upd.Transactions != nil {
		run.Transactions = *upd.Transactions
	}
	if upd.ChurnAccuracy != nil {
		run.ChurnAccuracy = *upd.ChurnAccuracy
	}
	if upd.RevenueMAE != nil {
		run.RevenueMAE = *upd.RevenueMAE
	}
	if upd.SegmentCount != nil {
		run.SegmentCount = *upd.SegmentCount
	}
	if upd.AnomalyRate != nil {
		run.AnomalyRate = *upd.AnomalyRate
	}
	if upd.Error != nil {
		run.Error = *upd.Error
	}
	return nil
}

// GetRun retrieves a single run; nil when absent.
func (s *MemoryStore) GetRun(id string) (*TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	run := s.runs[idx]
	return &run, nil
}

// ListRuns returns runs matching the filter options, newest first.
func (s *MemoryStore) ListRuns(opts ListOptions) ([]TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := int64(0)
	if opts.Window > 0 {
		cutoff = time.Now().UnixMilli() - opts.Window.Milliseconds()
	}

	var filtered []TrainingRun
	for i := 0; i < s.count; i++ {
		idx := (s.head - 1 - i + s.maxRows) % s.maxRows
		run := s.runs[idx]
		if opts.Status != nil && run.Status != *opts.Status {
			continue
		}
		if cutoff > 0 && run.TSStart < cutoff {
			continue
		}
		filtered = append(filtered, run)
	}

	if opts.Offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

// InsertAlert records a flagged condition.
func (s *MemoryStore) InsertAlert(a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts[s.aHead] = *a
	s.aHead = (s.aHead + 1) % s.maxRows
	if s.aCount < s.maxRows {
		s.aCount++
	}
	return nil
}

// ListAlerts returns alerts matching the filter options, newest first.
func (s *MemoryStore) ListAlerts(opts AlertOptions) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := int64(0)
	if opts.Window > 0 {
		cutoff = time.Now().UnixMilli() - opts.Window.Milliseconds()
	}

	var filtered []Alert
	for i := 0; i < s.aCount; i++ {
		idx := (s.aHead - 1 - i + s.maxRows) % s.maxRows
		a := s.alerts[idx]
		if opts.Severity != nil && a.Severity != *opts.Severity {
			continue
		}
		if opts.Kind != "" && a.Kind != opts.Kind {
			continue
		}
		if cutoff > 0 && a.TS < cutoff {
			continue
		}
		filtered = append(filtered, a)
		if opts.Limit > 0 && len(filtered) == opts.Limit {
			break
		}
	}
	return filtered, nil
}

// Overview returns aggregate run statistics.
func (s *MemoryStore) Overview(window time.Duration) (*Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UnixMilli() - window.Milliseconds()

	var o Overview
	var durSum, durCount int64
	for i := 0; i < s.count; i++ {
		idx := (s.head - 1 - i + s.maxRows) % s.maxRows
		run := s.runs[idx]
		if run.TSStart < cutoff {
			continue
		}
		o.TotalRuns++
		switch run.Status {
		case RunSuccess:
			o.SuccessCount++
			if o.LastSuccess == nil || run.TSStart > *o.LastSuccess {
				ts := run.TSStart
				o.LastSuccess = &ts
			}
		case RunError:
			o.ErrorCount++
		}
		if run.TSEnd != nil {
			durSum += *run.TSEnd - run.TSStart
			durCount++
		}
	}
	if o.TotalRuns > 0 {
		o.SuccessRate = float64(o.SuccessCount) / float64(o.TotalRuns)
	}
	if durCount > 0 {
		o.AvgDurationMs = int(durSum / durCount)
	}
	for i := 0; i < s.aCount; i++ {
		idx := (s.aHead - 1 - i + s.maxRows) % s.maxRows
		if s.alerts[idx].TS >= cutoff {
			o.AlertCount++
		}
	}
	return &o, nil
}

// Close is a no-op for memory store.
func (s *MemoryStore) Close() error {
	return nil
}
