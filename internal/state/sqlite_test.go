package state

import (
	"context"
	"testing"
	"time"

	"github.com/cinedata/wpmigrate/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:", testutil.NewTestLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndCompleteRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "location", "dry-run")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" {
		t.Error("expected a generated run ID")
	}
	if run.Status != StatusRunning {
		t.Errorf("status = %q, want %q", run.Status, StatusRunning)
	}

	if err := s.CompleteRun(ctx, run.ID, StatusCompleted, "", `{"location":{"processed":10}}`); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	if got.TotalsJSON != `{"location":{"processed":10}}` {
		t.Errorf("totals_json = %q", got.TotalsJSON)
	}
}

func TestCompleteRunUnknownID(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CompleteRun(context.Background(), "no-such-run", StatusFailed, "boom", ""); err == nil {
		t.Fatal("expected error for unknown run ID")
	}
}

func TestRecordChunk(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "crew", "apply")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	for seq := 1; seq <= 3; seq++ {
		err := s.RecordChunk(ctx, ChunkProgress{
			RunID:       run.ID,
			Seq:         seq,
			Processed:   500,
			Migrated:    480,
			Skipped:     15,
			Anomalous:   5,
			CommittedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("RecordChunk seq %d: %v", seq, err)
		}
	}
	// Duplicate sequence numbers within a run are rejected.
	err = s.RecordChunk(ctx, ChunkProgress{RunID: run.ID, Seq: 2, CommittedAt: time.Now().UTC()})
	if err == nil {
		t.Error("expected duplicate chunk seq to fail")
	}
}

func TestListRunsOrderAndLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for range 5 {
		if _, err := s.CreateRun(ctx, "role", "apply"); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	runs, err := s.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("got %d runs, want 3", len(runs))
	}
}
