package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cinedata/wpmigrate/internal/taxonomy"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the location hierarchy without migrating",
		Long: `Build the location dependency graph from the legacy taxonomy and print
its shape: node counts per depth level and every anomaly (cycles,
orphaned parents) that would be excluded from migration.

No writes happen; the target store is not touched at all.`,
		RunE: runPlan,
	}
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	rt, err := RuntimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	if err := rt.Cfg.ValidateDatabases(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := rt.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	terms, err := src.TaxonomyTerms(ctx, "localidad")
	if err != nil {
		return err
	}
	graph := taxonomy.BuildGraph(terms)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%d taxonomy nodes, %d migratable, %d anomalous\n\n",
		len(terms), len(graph.MigrationOrder()), len(graph.Anomalies()))

	depths := table.NewWriter()
	depths.SetOutputMirror(out)
	depths.AppendHeader(table.Row{"Depth", "Nodes"})
	for level, count := range graph.DepthLevels() {
		depths.AppendRow(table.Row{level, count})
	}
	depths.Render()

	if anomalies := graph.Anomalies(); len(anomalies) > 0 {
		fmt.Fprintln(out)
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.AppendHeader(table.Row{"Term", "Name", "Parent", "Kind", "Detail"})
		for _, a := range anomalies {
			t.AppendRow(table.Row{a.Node.ID, a.Node.Name, a.Node.ParentID, string(a.Kind), a.Detail})
		}
		t.Render()
	}
	return nil
}
