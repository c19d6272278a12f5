//go:build mips64 || mips64le || ppc64 || s390x

package storage

import (
	"errors"
	"log/slog"
	"time"
)

// SQLiteStore stub for platforms the sqlite driver does not support.
type SQLiteStore struct{}

var errNoSQLite = errors.New("SQLite storage is not supported on this platform, use memory storage instead")

// NewSQLiteStore returns an error on unsupported platforms.
func NewSQLiteStore(path string, maxRows int, logger *slog.Logger) (*SQLiteStore, error) {
	return nil, errNoSQLite
}

func (s *SQLiteStore) InsertRun(run *TrainingRun) error                 { return errNoSQLite }
func (s *SQLiteStore) UpdateRun(id string, upd RunUpdate) error         { return errNoSQLite }
func (s *SQLiteStore) GetRun(id string) (*TrainingRun, error)           { return nil, errNoSQLite }
func (s *SQLiteStore) ListRuns(opts ListOptions) ([]TrainingRun, error) { return nil, errNoSQLite }
func (s *SQLiteStore) InsertAlert(a *Alert) error                       { return errNoSQLite }
func (s *SQLiteStore) ListAlerts(opts AlertOptions) ([]Alert, error)    { return nil, errNoSQLite }
func (s *SQLiteStore) Overview(window time.Duration) (*Overview, error) { return nil, errNoSQLite }
func (s *SQLiteStore) Close() error                                     { return nil }
