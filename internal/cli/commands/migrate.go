package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cinedata/wpmigrate/internal/config"
	"github.com/cinedata/wpmigrate/internal/engine"
	"github.com/cinedata/wpmigrate/internal/report"
	"github.com/cinedata/wpmigrate/internal/state"
)

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	Entity string
	DryRun bool
	Limit  int
	Resume bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run a migration against the target store",
		Long: `Migrate one entity kind (or all of them, in dependency order) from the
legacy store into the target schema.

Writes happen in chunks; each committed chunk survives an interruption,
and a re-run skips everything already mapped. --dry-run performs every
read and classification step without writing, producing the same report
an apply run would.`,
		Example: `  # Preview the full migration
  wpmigrate migrate --entity=all --dry-run

  # Migrate the location hierarchy
  wpmigrate migrate --entity=location

  # Smoke-test crew credits on a handful of movies
  wpmigrate migrate --entity=crew --limit=20 --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", engine.EntityAll,
		"entity to migrate: location, role, crew, nationality, coproduction, or all")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "classify and report without writing")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "cap records processed (0 = no cap)")
	cmd.Flags().BoolVar(&opts.Resume, "resume", true, "skip records already migrated by earlier runs")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	rt, err := RuntimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	if !engine.ValidEntity(opts.Entity) {
		return fmt.Errorf("%w: unknown entity %q", config.ErrInvalidConfig, opts.Entity)
	}
	if err := rt.Cfg.ValidateDatabases(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := rt.openSource(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrAborted, err)
	}
	defer src.Close()

	store, err := rt.openTarget(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrAborted, err)
	}
	defer store.Close()
	if err := store.CheckSchema(ctx); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrAborted, err)
	}

	audit, err := state.Open(rt.Cfg.StatePath, rt.Logger)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrAborted, err)
	}
	defer audit.Close()

	eng, err := engine.New(engine.Config{
		Entity:    opts.Entity,
		DryRun:    opts.DryRun,
		ChunkSize: rt.Cfg.ChunkSize,
		Limit:     opts.Limit,
		Resume:    opts.Resume,
	}, src, store, audit, rt.Logger)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	rep, runErr := eng.Run(ctx)
	if rep != nil {
		if err := writeReports(rt, rep); err != nil {
			rt.Logger.Warn("could not write report files", "error", err)
		}
		rep.RenderSummary(cmd.OutOrStdout())
	}
	return runErr
}

// writeReports writes the JSON report and the anomaly CSV under the
// configured report directory.
func writeReports(rt *Runtime, rep *report.RunReport) error {
	dir := rt.Cfg.ReportDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	jsonPath := filepath.Join(dir, fmt.Sprintf("run-%s.json", rep.RunID))
	jf, err := os.Create(jsonPath)
	if err != nil {
		return err
	}
	defer jf.Close()
	if err := rep.WriteJSON(jf); err != nil {
		return err
	}

	csvPath := filepath.Join(dir, fmt.Sprintf("anomalies-%s.csv", rep.RunID))
	cf, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer cf.Close()
	if err := rep.WriteCSV(cf); err != nil {
		return err
	}

	rt.Logger.Info("reports written", "json", jsonPath, "csv", csvPath)
	return nil
}
