package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
)

func sampleReport() *RunReport {
	r := New("run-1", "crew", ModeApply)
	r.AddTotals("crew", Totals{Processed: 100, Migrated: 90, Skipped: 4, Anomalous: 6})
	r.Record(Anomaly{OwnerID: 7, OwnerName: "Camila", Field: "ficha_tecnica_montaje_0_persona",
		RawValue: `a:1:{i:0;s:4:"9999";}`, Reason: "person_not_found", Detail: "legacy person 9999 has no canonical row"})
	r.Record(Anomaly{OwnerID: 7, Field: "ficha_tecnica_montaje_1_rol", RawValue: "Catering",
		Reason: "role_not_found"})
	r.Record(Anomaly{OwnerID: 9, Field: "ficha_tecnica_sonido_0_persona", RawValue: "garbage",
		Reason: "person_not_found"})
	return r
}

func TestRunReport_AnomalyCountsAndSamples(t *testing.T) {
	r := sampleReport()

	counts := r.AnomalyCounts()
	if counts["person_not_found"] != 2 || counts["role_not_found"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	samples := r.Samples(1)
	if len(samples["person_not_found"]) != 1 {
		t.Errorf("samples capped incorrectly: %v", samples)
	}
	if samples["person_not_found"][0].OwnerID != 7 {
		t.Error("samples should preserve recording order")
	}
}

func TestRunReport_WriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading produced CSV: %v", err)
	}
	if len(records) != 4 { // header + 3 anomalies
		t.Fatalf("got %d rows, want 4", len(records))
	}
	if records[0][0] != "owner_id" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][4] != "person_not_found" || records[1][3] == "" {
		t.Errorf("first anomaly row = %v", records[1])
	}
}

func TestRunReport_WriteJSON_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded RunReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding produced JSON: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Anomalies) != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Totals["crew"].Migrated != 90 {
		t.Errorf("totals lost: %+v", decoded.Totals)
	}
}

func TestRunReport_RenderSummary(t *testing.T) {
	r := sampleReport()
	r.DepthLevels = []int{2, 5, 9}

	var buf bytes.Buffer
	r.RenderSummary(&buf)
	out := buf.String()

	for _, want := range []string{"run-1", "person_not_found", "role_not_found", "level 2: 9 nodes", "Camila"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
