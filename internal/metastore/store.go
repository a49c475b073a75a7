// Package metastore persists run metadata for completed and in-flight
// engine invocations: which algorithm ran, over how many shards, how many
// iterations it took, and whether it converged or was terminated fatally
// (spec §7's run-outcome reporting). It is the durable counterpart to the
// --log per-vertex dump: one row per Runtime lifetime rather than one line
// per vertex.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RunStatus is the lifecycle state of one tracked run.
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusConverged RunStatus = "converged"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one Runtime invocation's record in the run_history table.
type Run struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Algorithm   string    `gorm:"column:algorithm;type:varchar(32);index"`
	NMIC        int       `gorm:"column:nmic"`
	Status      RunStatus `gorm:"column:status;type:varchar(16)"`
	Iterations  int       `gorm:"column:iterations"`
	FailureInfo string    `gorm:"column:failure_info;type:text"`
	StartedAt   time.Time `gorm:"column:started_at;autoCreateTime"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
}

// TableName returns the table name for Run.
func (Run) TableName() string {
	return "run_history"
}

// Store records run lifecycle events in a SQLite-backed GORM database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates the run_history schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("metastore: open sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("metastore: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartRun inserts a new run_history row in RunStatusStarted and returns its
// id for later completion via Converged or Failed.
func (s *Store) StartRun(ctx context.Context, algorithm string, nmic int) (int64, error) {
	run := &Run{Algorithm: algorithm, NMIC: nmic, Status: RunStatusStarted}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return 0, fmt.Errorf("metastore: insert run: %w", err)
	}
	return run.ID, nil
}

// Converged marks a run complete after its VertexDomain reports Done().
func (s *Store) Converged(ctx context.Context, id int64, iterations int) error {
	return s.finish(ctx, id, RunStatusConverged, iterations, "")
}

// Failed marks a run complete after a FatalSink-routed error, recording its
// message for later inspection.
func (s *Store) Failed(ctx context.Context, id int64, iterations int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(ctx, id, RunStatusFailed, iterations, msg)
}

func (s *Store) finish(ctx context.Context, id int64, status RunStatus, iterations int, failureInfo string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", id).Updates(map[string]any{
		"status":       status,
		"iterations":   iterations,
		"failure_info": failureInfo,
		"finished_at":  now,
	})
	if result.Error != nil {
		return fmt.Errorf("metastore: update run %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("metastore: run not found: %d", id)
	}
	return nil
}

// GetRun retrieves a run_history row by id.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("metastore: run not found: %d", id)
		}
		return nil, fmt.Errorf("metastore: get run %d: %w", id, err)
	}
	return &run, nil
}

// RecentRuns lists the most recently started runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	var runs []*Run
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("metastore: list recent runs: %w", err)
	}
	return runs, nil
}
