package commands

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cinedata/wpmigrate/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent migration runs",
		Long: `Show recent runs from the local run-history database. The history is
an audit artifact: deleting it never affects resumability, which relies
on the ID mappings stored in the target.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	rt, err := RuntimeFrom(cmd.Context())
	if err != nil {
		return err
	}

	store, err := state.Open(rt.Cfg.StatePath, rt.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Run", "Entity", "Mode", "Status", "Started", "Duration"})
	for _, r := range runs {
		duration := ""
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.ID[:8],
			r.Entity,
			r.Mode,
			r.Status,
			r.StartedAt.Format(time.RFC3339),
			duration,
		})
	}
	t.Render()
	return nil
}
