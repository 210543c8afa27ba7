// Package state persists run history to a local SQLite database. The
// store is an audit artifact: resuming an interrupted migration relies on
// the id_mappings table in the target database, never on this file.
package state

import (
	"context"
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is a single invocation of the migration engine.
type Run struct {
	ID         string
	Entity     string
	Mode       string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
	TotalsJSON string
}

// ChunkProgress records one committed chunk within a run.
type ChunkProgress struct {
	RunID       string
	Seq         int
	Processed   int
	Migrated    int
	Skipped     int
	Anomalous   int
	CommittedAt time.Time
}

// Store records runs and chunk progress.
type Store interface {
	CreateRun(ctx context.Context, entity, mode string) (*Run, error)
	CompleteRun(ctx context.Context, id, status, errMsg, totalsJSON string) error
	RecordChunk(ctx context.Context, p ChunkProgress) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
