// Package report builds the run's output artifacts: a machine-readable
// anomaly report for spreadsheet review and a human-readable summary.
// Reports are regenerated fresh every run; they are audit artifacts, not
// authoritative data.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Mode is the run mode the report was produced under. Dry-run and apply
// reports are identical in shape so a dry run is a trustworthy preview.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeApply  Mode = "apply"
)

// MaxSamples caps how many sample records each anomaly class shows in the
// human summary. The CSV always carries every record.
const MaxSamples = 10

// Totals counts record dispositions for one entity kind.
type Totals struct {
	Processed int `json:"processed"`
	Migrated  int `json:"migrated"`
	Skipped   int `json:"skipped"`
	Anomalous int `json:"anomalous"`
}

// Anomaly is one unresolved legacy reference with enough context to
// reproduce the failure from the report alone.
type Anomaly struct {
	OwnerID   int64  `json:"owner_id"`
	OwnerName string `json:"owner_name,omitempty"`
	Field     string `json:"field,omitempty"`
	RawValue  string `json:"raw_value,omitempty"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// RunReport is the final artifact of a run.
type RunReport struct {
	RunID       string            `json:"run_id"`
	Mode        Mode              `json:"mode"`
	Entity      string            `json:"entity"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
	Totals      map[string]Totals `json:"totals"`
	Anomalies   []Anomaly         `json:"anomalies"`
	DepthLevels []int             `json:"depth_levels,omitempty"`
}

// New creates an empty report for a run.
func New(runID, entity string, mode Mode) *RunReport {
	return &RunReport{
		RunID:     runID,
		Mode:      mode,
		Entity:    entity,
		StartedAt: time.Now().UTC(),
		Totals:    make(map[string]Totals),
	}
}

// AddTotals merges disposition counts for an entity kind.
func (r *RunReport) AddTotals(kind string, t Totals) {
	cur := r.Totals[kind]
	cur.Processed += t.Processed
	cur.Migrated += t.Migrated
	cur.Skipped += t.Skipped
	cur.Anomalous += t.Anomalous
	r.Totals[kind] = cur
}

// Record appends an anomaly.
func (r *RunReport) Record(a Anomaly) {
	r.Anomalies = append(r.Anomalies, a)
}

// AnomalyCounts returns record counts per classification.
func (r *RunReport) AnomalyCounts() map[string]int {
	counts := make(map[string]int)
	for _, a := range r.Anomalies {
		counts[a.Reason]++
	}
	return counts
}

// Samples returns up to max anomalies per classification, in recording
// order.
func (r *RunReport) Samples(max int) map[string][]Anomaly {
	samples := make(map[string][]Anomaly)
	for _, a := range r.Anomalies {
		if len(samples[a.Reason]) < max {
			samples[a.Reason] = append(samples[a.Reason], a)
		}
	}
	return samples
}

// WriteJSON writes the full report as indented JSON.
func (r *RunReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per anomaly, spreadsheet-ready.
func (r *RunReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"owner_id", "owner_name", "field", "raw_value", "reason", "detail"}); err != nil {
		return err
	}
	for _, a := range r.Anomalies {
		row := []string{
			strconv.FormatInt(a.OwnerID, 10),
			a.OwnerName,
			a.Field,
			a.RawValue,
			a.Reason,
			a.Detail,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderSummary prints the human-readable run summary.
func (r *RunReport) RenderSummary(w io.Writer) {
	fmt.Fprintf(w, "Run %s (%s, entity=%s)\n", r.RunID, r.Mode, r.Entity)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Kind", "Processed", "Migrated", "Skipped", "Anomalous"})
	kinds := make([]string, 0, len(r.Totals))
	for kind := range r.Totals {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		tot := r.Totals[kind]
		t.AppendRow(table.Row{kind, tot.Processed, tot.Migrated, tot.Skipped, tot.Anomalous})
	}
	t.Render()

	if len(r.DepthLevels) > 0 {
		fmt.Fprintln(w, "\nHierarchy depth distribution:")
		for depth, count := range r.DepthLevels {
			fmt.Fprintf(w, "  level %d: %d nodes\n", depth, count)
		}
	}

	counts := r.AnomalyCounts()
	if len(counts) == 0 {
		fmt.Fprintf(w, "\nNo anomalies. Completed in %s\n", r.Duration.Round(time.Millisecond))
		return
	}

	fmt.Fprintf(w, "\nAnomalies (%d total):\n", len(r.Anomalies))
	at := table.NewWriter()
	at.SetOutputMirror(w)
	at.AppendHeader(table.Row{"Reason", "Count"})
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		at.AppendRow(table.Row{reason, counts[reason]})
	}
	at.Render()

	samples := r.Samples(MaxSamples)
	for _, reason := range reasons {
		fmt.Fprintf(w, "\n%s samples:\n", reason)
		for _, a := range samples[reason] {
			fmt.Fprintf(w, "  owner %d %q field=%s raw=%q %s\n",
				a.OwnerID, a.OwnerName, a.Field, truncate(a.RawValue, 60), a.Detail)
		}
	}

	fmt.Fprintf(w, "\nCompleted in %s\n", r.Duration.Round(time.Millisecond))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
