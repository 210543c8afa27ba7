package state

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the audit database at path and runs
// any pending schema migrations. Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	// The modernc driver is not safe for concurrent writes over
	// multiple connections.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrating state schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, entity, mode string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Entity:    entity,
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, entity, mode, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Entity, run.Mode, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	s.logger.Debug("run recorded", "run_id", run.ID, "entity", entity, "mode", mode)
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id, status, errMsg, totalsJSON string) error {
	if totalsJSON == "" {
		totalsJSON = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error = ?, totals_json = ? WHERE id = ?`,
		status, time.Now().UTC(), errMsg, totalsJSON, id)
	if err != nil {
		return fmt.Errorf("completing run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("completing run %s: no such run", id)
	}
	return nil
}

func (s *SQLiteStore) RecordChunk(ctx context.Context, p ChunkProgress) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (run_id, seq, processed, migrated, skipped, anomalous, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, p.Seq, p.Processed, p.Migrated, p.Skipped, p.Anomalous, p.CommittedAt)
	if err != nil {
		return fmt.Errorf("recording chunk %d of run %s: %w", p.Seq, p.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, mode, status, started_at, finished_at, error, totals_json
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Entity, &r.Mode, &r.Status, &r.StartedAt, &finished, &r.Error, &r.TotalsJSON); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
