package target

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/retry"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Postgres{
		db:     db,
		policy: retry.NewPolicy(1, time.Second, nil),
	}, mock
}

func TestPostgres_InsertLocation_ReturnsNewID(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs("La Plata", "la-plata", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))

	parent := int64(12)
	id, err := p.InsertLocation(context.Background(), "La Plata", "la-plata", &parent)
	if err != nil {
		t.Fatalf("InsertLocation failed: %v", err)
	}
	if id != 31 {
		t.Errorf("id = %d, want 31", id)
	}
}

func TestPostgres_InsertCrewCredit_ConflictNotInserted(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO movie_crew`).
		WithArgs(int64(1), int64(2), int64(3), "SONIDO").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := p.InsertCrewCredit(context.Background(), 1, 2, 3, "SONIDO")
	if err != nil {
		t.Fatalf("InsertCrewCredit failed: %v", err)
	}
	if inserted {
		t.Error("conflict row reported as inserted")
	}
}

func TestPostgres_UpsertIDMapping_ReplaySameMapping(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO id_mappings`).
		WithArgs("location", int64(7), int64(70)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT new_id FROM id_mappings`).
		WithArgs("location", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"new_id"}).AddRow(70))

	if err := p.UpsertIDMapping(context.Background(), remap.KindLocation, 7, 70); err != nil {
		t.Fatalf("replay of identical mapping should succeed: %v", err)
	}
}

func TestPostgres_UpsertIDMapping_ConflictingNewID(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO id_mappings`).
		WithArgs("location", int64(7), int64(71)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT new_id FROM id_mappings`).
		WithArgs("location", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"new_id"}).AddRow(70))

	err := p.UpsertIDMapping(context.Background(), remap.KindLocation, 7, 71)
	if err == nil {
		t.Fatal("expected invariant violation for conflicting mapping")
	}
}

func TestPostgres_LoadIDMappings(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT legacy_id, new_id FROM id_mappings`).
		WithArgs("person").
		WillReturnRows(sqlmock.NewRows([]string{"legacy_id", "new_id"}).
			AddRow(100, 1).
			AddRow(200, 2))

	m, err := p.LoadIDMappings(context.Background(), remap.KindPerson)
	if err != nil {
		t.Fatalf("LoadIDMappings failed: %v", err)
	}
	if len(m) != 2 || m[100] != 1 || m[200] != 2 {
		t.Errorf("mappings = %v", m)
	}
}

func TestPostgres_HasIDMapping_NoRows(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT 1 FROM id_mappings`).
		WithArgs("role", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	found, err := p.HasIDMapping(context.Background(), remap.KindRole, 5)
	if err != nil {
		t.Fatalf("HasIDMapping failed: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestPostgres_Locations_NullParent(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, slug, parent_id FROM locations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "parent_id"}).
			AddRow(1, "Argentina", "argentina", nil).
			AddRow(2, "Buenos Aires", "buenos-aires", 1))

	locs, err := p.Locations(context.Background())
	if err != nil {
		t.Fatalf("Locations failed: %v", err)
	}
	if locs[0].ParentID != nil {
		t.Error("root location should have nil parent")
	}
	if locs[1].ParentID == nil || *locs[1].ParentID != 1 {
		t.Error("child parent not scanned")
	}
}
