package lookup

import (
	"context"
	"testing"

	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/target"
)

type fakeCatalog struct {
	locations []target.LocationRow
	people    []target.PersonRow
	roles     []target.RoleRow
	movies    []target.MovieRow
}

func (f *fakeCatalog) Locations(context.Context) ([]target.LocationRow, error) {
	return f.locations, nil
}
func (f *fakeCatalog) People(context.Context) ([]target.PersonRow, error) { return f.people, nil }
func (f *fakeCatalog) Roles(context.Context) ([]target.RoleRow, error)   { return f.roles, nil }
func (f *fakeCatalog) Movies(context.Context) ([]target.MovieRow, error) { return f.movies, nil }

func loadedCache(t *testing.T) *Cache {
	t.Helper()
	parent := int64(1)
	cat := &fakeCatalog{
		locations: []target.LocationRow{
			{ID: 1, Name: "España", Slug: "espana"},
			{ID: 2, Name: "Buenos Aires", Slug: "buenos-aires", ParentID: &parent},
		},
		people: []target.PersonRow{
			{ID: 10, Name: "María Luisa Bemberg", Slug: "maria-luisa-bemberg", LegacyID: 4411},
		},
		roles: []target.RoleRow{
			{ID: 20, Name: "Director", Department: "DIRECCION"},
		},
		movies: []target.MovieRow{
			{ID: 30, Title: "Camila", Slug: "camila", LegacyID: 99},
		},
	}
	c := NewCache(nil)
	if err := c.Load(context.Background(), cat); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c
}

func TestCache_LookupByName_CaseAndDiacriticInsensitive(t *testing.T) {
	c := loadedCache(t)

	for _, name := range []string{"España", "españa", "ESPANA", "Espana "} {
		id, ok := c.LookupByName(remap.KindLocation, name)
		if !ok || id != 1 {
			t.Errorf("LookupByName(%q) = %d, %v; want 1, true", name, id, ok)
		}
	}

	id, ok := c.LookupByName(remap.KindPerson, "maria luisa bemberg")
	if !ok || id != 10 {
		t.Errorf("person lookup = %d, %v", id, ok)
	}

	if _, ok := c.LookupByName(remap.KindRole, "Productor"); ok {
		t.Error("unexpected match for unknown role")
	}
}

func TestCache_LookupByLegacyID(t *testing.T) {
	c := loadedCache(t)

	id, ok := c.LookupByLegacyID(remap.KindPerson, 4411)
	if !ok || id != 10 {
		t.Errorf("legacy person lookup = %d, %v", id, ok)
	}
	id, ok = c.LookupByLegacyID(remap.KindMovie, 99)
	if !ok || id != 30 {
		t.Errorf("legacy movie lookup = %d, %v", id, ok)
	}
	if _, ok := c.LookupByLegacyID(remap.KindPerson, 1); ok {
		t.Error("unexpected legacy match")
	}
}

func TestCache_LookupRootLocation(t *testing.T) {
	c := loadedCache(t)

	if id, ok := c.LookupRootLocation("españa"); !ok || id != 1 {
		t.Errorf("root lookup = %d, %v", id, ok)
	}
	// Buenos Aires has a parent, so it is not a country.
	if _, ok := c.LookupRootLocation("Buenos Aires"); ok {
		t.Error("non-root location matched as country")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"José Martínez Suárez", "jose martinez suarez"},
		{"  DIRECCIÓN  ", "direccion"},
		{"Peña", "pena"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Director de Fotografía", "director-de-fotografia"},
		{"Maquillaje / Peinados", "maquillaje-peinados"},
		{"  Sonido  ", "sonido"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
