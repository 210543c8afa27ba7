package taxonomy

import (
	"context"
	"testing"

	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/source"
)

type fakeInserter struct {
	nextID   int64
	inserted []insertedLocation
}

type insertedLocation struct {
	name   string
	slug   string
	parent *int64
}

func (f *fakeInserter) InsertLocation(_ context.Context, name, slug string, parentID *int64) (int64, error) {
	f.nextID++
	f.inserted = append(f.inserted, insertedLocation{name: name, slug: slug, parent: parentID})
	return f.nextID, nil
}

// A three-level chain plus a node whose parent does not exist.
func TestMigrator_HierarchyScenario(t *testing.T) {
	ctx := context.Background()
	rows := []source.TermRow{
		{ID: 1, Name: "Argentina", Slug: "argentina", ParentID: 0},
		{ID: 2, Name: "Buenos Aires", Slug: "buenos-aires", ParentID: 1},
		{ID: 3, Name: "La Plata", Slug: "la-plata", ParentID: 2},
		{ID: 4, Name: "Ghost", Slug: "ghost", ParentID: 99},
	}

	g := BuildGraph(rows)
	if len(g.Anomalies()) != 1 || g.Anomalies()[0].Kind != OrphanedParent {
		t.Fatalf("anomalies = %v", g.Anomalies())
	}

	store := &fakeInserter{}
	r := remap.New(nil, nil)
	m := NewMigrator(store, r, false, nil)

	for _, node := range g.MigrationOrder() {
		status, err := m.MigrateNode(ctx, node)
		if err != nil {
			t.Fatalf("MigrateNode(%d) failed: %v", node.ID, err)
		}
		if status != StatusMigrated {
			t.Fatalf("MigrateNode(%d) status = %v", node.ID, status)
		}
	}

	if len(store.inserted) != 3 {
		t.Fatalf("inserted %d rows, want 3", len(store.inserted))
	}

	baID, err := r.Get(remap.KindLocation, 2)
	if err != nil {
		t.Fatalf("Buenos Aires unmapped: %v", err)
	}
	laPlata := store.inserted[2]
	if laPlata.name != "La Plata" || laPlata.parent == nil || *laPlata.parent != baID {
		t.Errorf("La Plata parent = %v, want %d", laPlata.parent, baID)
	}
	if r.Count(remap.KindLocation) != 3 {
		t.Errorf("mapping count = %d, want 3", r.Count(remap.KindLocation))
	}
	if r.Has(remap.KindLocation, 4) {
		t.Error("ghost node must not be mapped")
	}
}

func TestMigrator_IdempotentRerun(t *testing.T) {
	ctx := context.Background()
	rows := []source.TermRow{
		{ID: 1, Name: "Argentina", Slug: "argentina", ParentID: 0},
		{ID: 2, Name: "Buenos Aires", Slug: "buenos-aires", ParentID: 1},
	}
	g := BuildGraph(rows)

	store := &fakeInserter{}
	r := remap.New(nil, nil)
	m := NewMigrator(store, r, false, nil)

	for _, node := range g.MigrationOrder() {
		if _, err := m.MigrateNode(ctx, node); err != nil {
			t.Fatal(err)
		}
	}
	// Second pass: everything already mapped, zero inserts.
	for _, node := range g.MigrationOrder() {
		status, err := m.MigrateNode(ctx, node)
		if err != nil {
			t.Fatal(err)
		}
		if status != StatusAlreadyMapped {
			t.Errorf("rerun status for %d = %v, want StatusAlreadyMapped", node.ID, status)
		}
	}
	if len(store.inserted) != 2 {
		t.Errorf("rerun inserted extra rows: %d", len(store.inserted))
	}
}

func TestMigrator_MissingParentInvariant(t *testing.T) {
	store := &fakeInserter{}
	r := remap.New(nil, nil)
	m := NewMigrator(store, r, false, nil)

	// Child presented without its parent ever being migrated.
	status, err := m.MigrateNode(context.Background(), source.TermRow{ID: 2, Name: "Buenos Aires", ParentID: 1})
	if err != nil {
		t.Fatalf("MigrateNode failed: %v", err)
	}
	if status != StatusMissingParent {
		t.Errorf("status = %v, want StatusMissingParent", status)
	}
	if len(store.inserted) != 0 {
		t.Error("node with missing parent mapping must not be inserted")
	}
}

func TestMigrator_DryRunSynthesizesParents(t *testing.T) {
	ctx := context.Background()
	g := BuildGraph([]source.TermRow{
		{ID: 1, Name: "Argentina", ParentID: 0},
		{ID: 2, Name: "Buenos Aires", ParentID: 1},
	})

	r := remap.New(nil, nil)
	m := NewMigrator(nil, r, true, nil)

	for _, node := range g.MigrationOrder() {
		status, err := m.MigrateNode(ctx, node)
		if err != nil {
			t.Fatal(err)
		}
		if status != StatusMigrated {
			t.Errorf("dry-run status = %v", status)
		}
	}

	id, err := r.Get(remap.KindLocation, 2)
	if err != nil {
		t.Fatal(err)
	}
	if id >= 0 {
		t.Errorf("dry-run id = %d, want negative synthetic", id)
	}
}
