package source

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cinedata/wpmigrate/internal/retry"
)

func newMockReader(t *testing.T) (*MySQLReader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &MySQLReader{
		db:     db,
		policy: retry.NewPolicy(1, time.Second, nil),
	}, mock
}

func TestMySQLReader_TaxonomyTerms(t *testing.T) {
	r, mock := newMockReader(t)

	rows := sqlmock.NewRows([]string{"term_id", "name", "slug", "parent", "count"}).
		AddRow(1, "Argentina", "argentina", 0, 120).
		AddRow(2, "Buenos Aires", "buenos-aires", 1, 45)

	mock.ExpectQuery(`FROM wp_terms t`).
		WithArgs("localidad").
		WillReturnRows(rows)

	terms, err := r.TaxonomyTerms(context.Background(), "localidad")
	if err != nil {
		t.Fatalf("TaxonomyTerms failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(terms))
	}
	if terms[0].Name != "Argentina" || terms[0].ParentID != 0 {
		t.Errorf("unexpected root term: %+v", terms[0])
	}
	if terms[1].ParentID != 1 {
		t.Errorf("child parent = %d, want 1", terms[1].ParentID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLReader_MetaForKey_Limit(t *testing.T) {
	r, mock := newMockReader(t)

	rows := sqlmock.NewRows([]string{"ID", "post_name", "post_title", "meta_key", "meta_value"}).
		AddRow(10, "maria-luisa-bemberg", "María Luisa Bemberg", "nacionalidad", `a:1:{i:0;s:3:"123";}`)

	mock.ExpectQuery(`FROM wp_posts p`).
		WithArgs("persona", "nacionalidad", 50).
		WillReturnRows(rows)

	meta, err := r.MetaForKey(context.Background(), "persona", "nacionalidad", 50)
	if err != nil {
		t.Fatalf("MetaForKey failed: %v", err)
	}
	if len(meta) != 1 {
		t.Fatalf("got %d rows, want 1", len(meta))
	}
	if meta[0].OwnerSlug != "maria-luisa-bemberg" {
		t.Errorf("owner slug = %q", meta[0].OwnerSlug)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLReader_TermNames(t *testing.T) {
	r, mock := newMockReader(t)

	rows := sqlmock.NewRows([]string{"term_id", "name"}).
		AddRow(7, "Argentina").
		AddRow(8, "Francia")

	mock.ExpectQuery(`FROM wp_terms WHERE term_id IN`).
		WithArgs(int64(7), int64(8)).
		WillReturnRows(rows)

	names, err := r.TermNames(context.Background(), []int64{7, 8})
	if err != nil {
		t.Fatalf("TermNames failed: %v", err)
	}
	if names[7] != "Argentina" || names[8] != "Francia" {
		t.Errorf("names = %v", names)
	}
}

func TestMySQLReader_TermNames_Empty(t *testing.T) {
	r, _ := newMockReader(t)
	names, err := r.TermNames(context.Background(), nil)
	if err != nil {
		t.Fatalf("TermNames failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
}

func TestMySQLReader_RoleUsages(t *testing.T) {
	r, mock := newMockReader(t)

	rows := sqlmock.NewRows([]string{"meta_key", "meta_value", "usage_count"}).
		AddRow("ficha_tecnica_direccion_0_rol", "Director", 900).
		AddRow("ficha_tecnica_sonido_1_rol", "Microfonista", 40)

	mock.ExpectQuery(`FROM wp_postmeta`).WillReturnRows(rows)

	usages, err := r.RoleUsages(context.Background())
	if err != nil {
		t.Fatalf("RoleUsages failed: %v", err)
	}
	if len(usages) != 2 || usages[0].Name != "Director" || usages[1].Count != 40 {
		t.Errorf("usages = %+v", usages)
	}
}
