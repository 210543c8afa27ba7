package commands

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity and schema readiness",
		Long: `Verify that both databases are reachable and that the target schema
contains every table the migration writes to. Run this before a
migration wave; it touches nothing.`,
		RunE: runDoctor,
	}
}

type checkResult struct {
	name string
	err  error
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	rt, err := RuntimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	if err := rt.Cfg.ValidateDatabases(); err != nil {
		return err
	}
	ctx := cmd.Context()

	var results []checkResult

	results = append(results, checkResult{"legacy store reachable", func() error {
		src, err := rt.openSource(ctx)
		if err != nil {
			return err
		}
		defer src.Close()
		return src.Ping(ctx)
	}()})

	results = append(results, checkResult{"target store reachable", checkTarget(ctx, rt, false)})
	results = append(results, checkResult{"target schema complete", checkTarget(ctx, rt, true)})

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})
	failed := 0
	for _, r := range results {
		status, detail := "ok", ""
		if r.err != nil {
			status, detail = "FAIL", r.err.Error()
			failed++
		}
		t.AppendRow(table.Row{r.name, status, detail})
	}
	t.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}

func checkTarget(ctx context.Context, rt *Runtime, schema bool) error {
	store, err := rt.openTarget(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if schema {
		return store.CheckSchema(ctx)
	}
	return store.Ping(ctx)
}
