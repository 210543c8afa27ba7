package engine

import (
	"context"
	"strconv"

	"github.com/cinedata/wpmigrate/internal/report"
	"github.com/cinedata/wpmigrate/internal/taxonomy"
)

// locationTaxonomy is the legacy taxonomy holding the country → province
// → city hierarchy.
const locationTaxonomy = "localidad"

// migrateLocations rebuilds the location hierarchy: graph construction
// with anomaly detection, then node-by-node insertion in topological
// order so every parent's new ID is known before its children need it.
func (e *Engine) migrateLocations(ctx context.Context) error {
	e.setPhase(PhaseMigrating)

	terms, err := e.src.TaxonomyTerms(ctx, locationTaxonomy)
	if err != nil {
		return err
	}
	graph := taxonomy.BuildGraph(terms)

	for _, a := range graph.Anomalies() {
		e.rep.Record(report.Anomaly{
			OwnerID:   a.Node.ID,
			OwnerName: a.Node.Name,
			Field:     "parent",
			RawValue:  strconv.FormatInt(a.Node.ParentID, 10),
			Reason:    string(a.Kind),
			Detail:    a.Detail,
		})
	}
	if n := len(graph.Anomalies()); n > 0 {
		e.rep.AddTotals("location", report.Totals{Processed: n, Anomalous: n})
	}
	e.rep.DepthLevels = graph.DepthLevels()

	// Truncating a topological order is safe: any prefix still has every
	// parent before its children.
	order := graph.MigrationOrder()
	order = order[:e.capped(len(order))]

	migrator := taxonomy.NewMigrator(e.store, e.remapper, e.cfg.DryRun, e.logger)

	return e.forEachChunk(ctx, "location", len(order), func(start, end int) (report.Totals, error) {
		var t report.Totals
		for _, node := range order[start:end] {
			t.Processed++
			status, err := migrator.MigrateNode(ctx, node)
			if err != nil {
				return t, err
			}
			switch status {
			case taxonomy.StatusMigrated:
				t.Migrated++
			case taxonomy.StatusAlreadyMapped:
				t.Skipped++
			case taxonomy.StatusMissingParent:
				t.Anomalous++
				e.rep.Record(report.Anomaly{
					OwnerID:   node.ID,
					OwnerName: node.Name,
					Field:     "parent",
					RawValue:  strconv.FormatInt(node.ParentID, 10),
					Reason:    string(taxonomy.SkippedMissingParent),
					Detail:    "parent mapping missing despite topological order",
				})
			}
		}
		return t, nil
	})
}
