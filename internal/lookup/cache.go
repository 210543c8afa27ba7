// Package lookup holds the canonical lookup cache: in-memory indexes over
// the target store's canonical tables, keyed by normalized name and by
// legacy ID. Built once per run; read-only afterwards.
package lookup

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/target"
)

// Catalog is the read side of the target store the cache loads from.
type Catalog interface {
	Locations(ctx context.Context) ([]target.LocationRow, error)
	People(ctx context.Context) ([]target.PersonRow, error)
	Roles(ctx context.Context) ([]target.RoleRow, error)
	Movies(ctx context.Context) ([]target.MovieRow, error)
}

// Cache indexes canonical rows by normalized name and by legacy ID.
// Tables can exceed 100k rows; everything is held in memory and never
// re-queried per lookup.
type Cache struct {
	byName   map[remap.Kind]map[string]int64
	byLegacy map[remap.Kind]map[int64]int64
	// rootsByName indexes only parentless locations. Nationalities and
	// co-production references resolve against countries, and province or
	// city homonyms must not capture them.
	rootsByName map[string]int64
	counts      map[remap.Kind]int
	logger      *slog.Logger
}

// NewCache creates an empty cache; call Load before first use.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		byName:      make(map[remap.Kind]map[string]int64),
		byLegacy:    make(map[remap.Kind]map[int64]int64),
		rootsByName: make(map[string]int64),
		counts:      make(map[remap.Kind]int),
		logger:      logger,
	}
}

// Load scans each canonical table once and builds the indexes. The scans
// run concurrently as a pure read fan-in and all complete before Load
// returns; no writes happen anywhere until after that join.
func (c *Cache) Load(ctx context.Context, cat Catalog) error {
	var (
		locations []target.LocationRow
		people    []target.PersonRow
		roles     []target.RoleRow
		movies    []target.MovieRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { locations, err = cat.Locations(gctx); return })
	g.Go(func() (err error) { people, err = cat.People(gctx); return })
	g.Go(func() (err error) { roles, err = cat.Roles(gctx); return })
	g.Go(func() (err error) { movies, err = cat.Movies(gctx); return })
	if err := g.Wait(); err != nil {
		return err
	}

	c.index(remap.KindLocation, len(locations))
	for _, l := range locations {
		c.byName[remap.KindLocation][Normalize(l.Name)] = l.ID
		if l.ParentID == nil {
			c.rootsByName[Normalize(l.Name)] = l.ID
		}
	}

	c.index(remap.KindPerson, len(people))
	for _, p := range people {
		c.byName[remap.KindPerson][Normalize(p.Name)] = p.ID
		if p.LegacyID != 0 {
			c.byLegacy[remap.KindPerson][p.LegacyID] = p.ID
		}
	}

	c.index(remap.KindRole, len(roles))
	for _, r := range roles {
		c.byName[remap.KindRole][Normalize(r.Name)] = r.ID
	}

	c.index(remap.KindMovie, len(movies))
	for _, m := range movies {
		c.byName[remap.KindMovie][Normalize(m.Title)] = m.ID
		if m.LegacyID != 0 {
			c.byLegacy[remap.KindMovie][m.LegacyID] = m.ID
		}
	}

	c.logger.Debug("canonical cache loaded",
		"locations", len(locations), "people", len(people),
		"roles", len(roles), "movies", len(movies))
	return nil
}

func (c *Cache) index(kind remap.Kind, n int) {
	c.byName[kind] = make(map[string]int64, n)
	c.byLegacy[kind] = make(map[int64]int64, n)
	c.counts[kind] = n
}

// LookupByName resolves a canonical row by exact normalized name.
func (c *Cache) LookupByName(kind remap.Kind, name string) (int64, bool) {
	id, ok := c.byName[kind][Normalize(name)]
	return id, ok
}

// LookupByLegacyID resolves a canonical row that still carries its
// originating legacy ID.
func (c *Cache) LookupByLegacyID(kind remap.Kind, legacyID int64) (int64, bool) {
	id, ok := c.byLegacy[kind][legacyID]
	return id, ok
}

// LookupRootLocation resolves a parentless location (country) by name.
func (c *Cache) LookupRootLocation(name string) (int64, bool) {
	id, ok := c.rootsByName[Normalize(name)]
	return id, ok
}

// Count returns how many rows were indexed for kind.
func (c *Cache) Count(kind remap.Kind) int {
	return c.counts[kind]
}
