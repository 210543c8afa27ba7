// Package source provides read-only access to the legacy CMS store. No
// writes are ever issued against it; every reader returns a snapshot taken
// at call time.
package source

import "context"

// TermRow is one entry of the generic parent-linked taxonomy table.
// ParentID 0 means root.
type TermRow struct {
	ID         int64
	Name       string
	Slug       string
	ParentID   int64
	UsageCount int64
}

// PostRow is an owning entity (movie or person).
type PostRow struct {
	ID     int64
	Title  string
	Slug   string
	Type   string
	Status string
}

// MetaRow is one keyed metadata value with its owner resolved. OwnerSlug
// and OwnerTitle ride along because downstream fact migrations match
// owners by slug when legacy IDs were not carried over.
type MetaRow struct {
	OwnerID    int64
	OwnerSlug  string
	OwnerTitle string
	Key        string
	Value      string
}

// RoleUsage is one distinct (meta key, role name) pair with how often it
// appears, used to harvest the role vocabulary out of crew credits.
type RoleUsage struct {
	MetaKey string
	Name    string
	Count   int64
}

// Reader is the legacy source interface consumed by the migrators.
type Reader interface {
	// TaxonomyTerms returns every node of the named taxonomy.
	TaxonomyTerms(ctx context.Context, taxonomy string) ([]TermRow, error)

	// MetaForKey returns metadata rows for one key across published posts
	// of the given type. limit 0 means no cap.
	MetaForKey(ctx context.Context, postType, metaKey string, limit int) ([]MetaRow, error)

	// CrewMeta returns every ficha_tecnica credit field (person and role
	// variants) for published movies. limit caps the number of movies, not
	// rows.
	CrewMeta(ctx context.Context, limit int) ([]MetaRow, error)

	// RoleUsages returns the distinct role names found in crew metadata
	// with usage counts.
	RoleUsages(ctx context.Context) ([]RoleUsage, error)

	// TermNames resolves taxonomy term IDs to their names.
	TermNames(ctx context.Context, ids []int64) (map[int64]string, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	Close() error
}
