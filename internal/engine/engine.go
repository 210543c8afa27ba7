// Package engine drives chunked, resumable migration runs: it owns the
// run lifecycle (phase transitions, chunk commits, progress, the final
// report) and delegates per-record work to the entity migrators.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinedata/wpmigrate/internal/lookup"
	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/report"
	"github.com/cinedata/wpmigrate/internal/source"
	"github.com/cinedata/wpmigrate/internal/state"
	"github.com/cinedata/wpmigrate/internal/target"
)

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseLoading      Phase = "loading"
	PhaseMigrating    Phase = "migrating"
	PhaseReconciling  Phase = "reconciling"
	PhaseReporting    Phase = "reporting"
	PhaseDone         Phase = "done"
	PhaseAborted      Phase = "aborted"
)

// ErrAborted wraps any fatal error that ends a run early. Chunks
// committed before the abort remain valid; a re-run picks up after them.
var ErrAborted = errors.New("run aborted")

// EntityAll runs every entity migrator in dependency order.
const EntityAll = "all"

// entityOrder is the dependency order for EntityAll: locations and roles
// build the canonical vocabulary the fact migrations resolve against.
var entityOrder = []string{"location", "role", "crew", "nationality", "coproduction"}

// ValidEntity reports whether name names a known entity migrator.
func ValidEntity(name string) bool {
	if name == EntityAll {
		return true
	}
	for _, e := range entityOrder {
		if e == name {
			return true
		}
	}
	return false
}

// Config is the per-run configuration the engine needs.
type Config struct {
	Entity    string
	DryRun    bool
	ChunkSize int
	// Limit caps the number of owning records processed. Zero means no cap.
	Limit int
	// Resume preloads persisted ID mappings so already-migrated records
	// are skipped. Disabling it only skips the preload; the target's
	// uniqueness constraints still prevent duplicate rows.
	Resume bool
}

// Engine runs one migration invocation.
type Engine struct {
	cfg    Config
	src    source.Reader
	store  target.Store
	audit  state.Store
	logger *slog.Logger

	phase    Phase
	cache    *lookup.Cache
	remapper *remap.Remapper
	rep      *report.RunReport
}

// New creates an engine. audit may be nil when no run history should be
// recorded (tests).
func New(cfg Config, src source.Reader, store target.Store, audit state.Store, logger *slog.Logger) (*Engine, error) {
	if !ValidEntity(cfg.Entity) {
		return nil, fmt.Errorf("unknown entity %q", cfg.Entity)
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", cfg.ChunkSize)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		cfg:    cfg,
		src:    src,
		store:  store,
		audit:  audit,
		logger: logger,
		phase:  PhaseInitializing,
	}, nil
}

// Phase returns the engine's current lifecycle state.
func (e *Engine) Phase() Phase { return e.phase }

func (e *Engine) setPhase(p Phase) {
	if e.phase != p {
		e.logger.Debug("phase transition", "from", string(e.phase), "to", string(p))
		e.phase = p
	}
}

// Mode returns the report mode for this run.
func (e *Engine) Mode() report.Mode {
	if e.cfg.DryRun {
		return report.ModeDryRun
	}
	return report.ModeApply
}

// dryRunMappings reads persisted ID mappings but swallows writes, so a
// dry run sees exactly what a re-run would skip without recording the
// synthetic IDs it hands out.
type dryRunMappings struct {
	store target.Store
}

func (d dryRunMappings) UpsertIDMapping(context.Context, remap.Kind, int64, int64) error {
	return nil
}

func (d dryRunMappings) LoadIDMappings(ctx context.Context, kind remap.Kind) (map[int64]int64, error) {
	return d.store.LoadIDMappings(ctx, kind)
}

// Run executes the configured migration and returns the final report.
// The report is returned even on abort, carrying whatever was recorded
// before the fatal error.
func (e *Engine) Run(ctx context.Context) (*report.RunReport, error) {
	e.setPhase(PhaseInitializing)

	runID := "local"
	if e.audit != nil {
		run, err := e.audit.CreateRun(ctx, e.cfg.Entity, string(e.Mode()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAborted, err)
		}
		runID = run.ID
	}
	e.rep = report.New(runID, e.cfg.Entity, e.Mode())

	err := e.execute(ctx)

	e.setPhase(PhaseReporting)
	e.rep.Duration = time.Since(e.rep.StartedAt)

	if err != nil {
		e.setPhase(PhaseAborted)
		e.completeAudit(runID, state.StatusFailed, err.Error())
		if !errors.Is(err, ErrAborted) {
			err = fmt.Errorf("%w: %v", ErrAborted, err)
		}
		return e.rep, err
	}
	e.setPhase(PhaseDone)
	e.completeAudit(runID, state.StatusCompleted, "")
	return e.rep, nil
}

func (e *Engine) execute(ctx context.Context) error {
	e.setPhase(PhaseLoading)

	var mappings remap.MappingStore
	if e.cfg.DryRun {
		mappings = dryRunMappings{store: e.store}
	} else {
		mappings = e.store
	}
	e.remapper = remap.New(mappings, e.logger)
	if e.cfg.Resume {
		kinds := []remap.Kind{remap.KindLocation, remap.KindPerson, remap.KindRole, remap.KindMovie}
		if err := e.remapper.Preload(ctx, kinds...); err != nil {
			return err
		}
	}

	if err := e.loadCache(ctx); err != nil {
		return err
	}

	entities := []string{e.cfg.Entity}
	if e.cfg.Entity == EntityAll {
		entities = entityOrder
	}
	cacheStale := false
	for _, entity := range entities {
		// Locations and roles grow the canonical tables; the fact
		// migrations resolve against them, so the cache is rebuilt once
		// writes are done.
		if cacheStale && isFactEntity(entity) {
			if err := e.loadCache(ctx); err != nil {
				return err
			}
			cacheStale = false
		}
		var err error
		switch entity {
		case "location":
			err = e.migrateLocations(ctx)
			cacheStale = true
		case "role":
			err = e.migrateRoles(ctx)
			cacheStale = true
		case "crew":
			err = e.migrateCrew(ctx)
		case "nationality":
			err = e.migrateNationalities(ctx)
		case "coproduction":
			err = e.migrateCoproductions(ctx)
		}
		if err != nil {
			return fmt.Errorf("migrating %s: %w", entity, err)
		}
	}
	return nil
}

func isFactEntity(entity string) bool {
	return entity == "crew" || entity == "nationality" || entity == "coproduction"
}

func (e *Engine) loadCache(ctx context.Context) error {
	e.cache = lookup.NewCache(e.logger)
	return e.cache.Load(ctx, e.store)
}

func (e *Engine) completeAudit(runID, status, errMsg string) {
	if e.audit == nil {
		return
	}
	totals, _ := json.Marshal(e.rep.Totals)
	// Completion uses a fresh context: the run context may already be
	// cancelled and the audit row should still close.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.audit.CompleteRun(ctx, runID, status, errMsg, string(totals)); err != nil {
		e.logger.Warn("could not finalize audit record", "run_id", runID, "error", err)
	}
}

// forEachChunk walks total records in chunks of the configured size,
// committing each chunk's totals and progress before the next begins.
// Cancellation is honored between chunks only, so a chunk is
// all-or-nothing from the caller's perspective.
func (e *Engine) forEachChunk(ctx context.Context, entity string, total int, process func(start, end int) (report.Totals, error)) error {
	started := time.Now()
	processed := 0
	for seq, start := 1, 0; start < total; seq, start = seq+1, start+e.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: cancelled before chunk %d", ErrAborted, seq)
		}
		end := min(start+e.cfg.ChunkSize, total)
		totals, err := process(start, end)
		if err != nil {
			return err
		}
		e.rep.AddTotals(entity, totals)
		processed = end

		pct := 100.0
		if total > 0 {
			pct = float64(processed) / float64(total) * 100
		}
		e.logger.Info("chunk committed",
			"entity", entity,
			"chunk", seq,
			"processed", processed,
			"total", total,
			"pct", fmt.Sprintf("%.1f", pct),
			"elapsed", time.Since(started).Round(time.Millisecond))

		if e.audit != nil {
			err := e.audit.RecordChunk(ctx, state.ChunkProgress{
				RunID:       e.rep.RunID,
				Seq:         seq,
				Processed:   totals.Processed,
				Migrated:    totals.Migrated,
				Skipped:     totals.Skipped,
				Anomalous:   totals.Anomalous,
				CommittedAt: time.Now().UTC(),
			})
			if err != nil {
				e.logger.Warn("could not record chunk progress", "error", err)
			}
		}
	}
	return nil
}

// capped applies the configured record limit to n.
func (e *Engine) capped(n int) int {
	if e.cfg.Limit > 0 && e.cfg.Limit < n {
		return e.cfg.Limit
	}
	return n
}
