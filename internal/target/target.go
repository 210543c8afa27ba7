// Package target provides access to the normalized relational store being
// populated. All calls are context-bound and routed through the shared
// retry policy.
package target

import (
	"context"

	"github.com/cinedata/wpmigrate/internal/remap"
)

// LocationRow is one row of the hierarchical locations table.
type LocationRow struct {
	ID       int64
	Name     string
	Slug     string
	ParentID *int64
}

// PersonRow is one canonical person. LegacyID is zero when the row does
// not carry its originating legacy ID.
type PersonRow struct {
	ID       int64
	Name     string
	Slug     string
	LegacyID int64
}

// RoleRow is one canonical crew role.
type RoleRow struct {
	ID         int64
	Name       string
	Slug       string
	Department string
}

// MovieRow is one canonical movie.
type MovieRow struct {
	ID       int64
	Title    string
	Slug     string
	LegacyID int64
}

// Store is the target-store interface consumed by the migrators. Fact
// inserts return false when the row already existed (conflict-do-nothing),
// which keeps re-runs idempotent at the store level.
type Store interface {
	// Reads for the canonical lookup cache. One full scan per table per
	// run; lookups afterwards are in-memory.
	Locations(ctx context.Context) ([]LocationRow, error)
	People(ctx context.Context) ([]PersonRow, error)
	Roles(ctx context.Context) ([]RoleRow, error)
	Movies(ctx context.Context) ([]MovieRow, error)

	// Writes. Insert methods returning an ID capture the surrogate key
	// assigned by the store.
	InsertLocation(ctx context.Context, name, slug string, parentID *int64) (int64, error)
	InsertRole(ctx context.Context, name, slug, department string) (int64, error)
	InsertCrewCredit(ctx context.Context, movieID, personID, roleID int64, department string) (bool, error)
	InsertNationality(ctx context.Context, personID, locationID int64) (bool, error)
	InsertMovieCountry(ctx context.Context, movieID, locationID int64) (bool, error)

	// ID mapping table, the backbone of cross-stage integrity.
	UpsertIDMapping(ctx context.Context, kind remap.Kind, legacyID, newID int64) error
	HasIDMapping(ctx context.Context, kind remap.Kind, legacyID int64) (bool, error)
	LoadIDMappings(ctx context.Context, kind remap.Kind) (map[int64]int64, error)

	Ping(ctx context.Context) error
	Close() error
}
