// Package remap maintains the persisted legacy-ID → new-ID translation
// table. It is the single source of truth for "what did legacy ID X
// become" across migration stages and process restarts.
package remap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Kind names an entity type in the mapping table.
type Kind string

const (
	KindLocation Kind = "location"
	KindPerson   Kind = "person"
	KindRole     Kind = "role"
	KindMovie    Kind = "movie"
)

// ErrNotFound is returned when no mapping exists for a legacy ID.
var ErrNotFound = errors.New("id mapping not found")

// MappingStore is the persistence backend, implemented by the target
// store. The store-level uniqueness constraint on (kind, legacy_id) is the
// final arbiter of correctness; the in-memory cache only makes Get O(1).
type MappingStore interface {
	UpsertIDMapping(ctx context.Context, kind Kind, legacyID, newID int64) error
	LoadIDMappings(ctx context.Context, kind Kind) (map[int64]int64, error)
}

// Remapper caches the mapping table per entity kind. A nil store makes the
// remapper memory-only, which is how dry runs record would-be mappings
// without writing anything.
type Remapper struct {
	store  MappingStore
	cache  map[Kind]map[int64]int64
	logger *slog.Logger
}

// New creates a remapper backed by store. Pass a nil store for a
// memory-only remapper (dry runs).
func New(store MappingStore, logger *slog.Logger) *Remapper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remapper{
		store:  store,
		cache:  make(map[Kind]map[int64]int64),
		logger: logger,
	}
}

// Preload bulk-loads the persisted mappings for the given kinds so every
// subsequent Get is a map lookup.
func (r *Remapper) Preload(ctx context.Context, kinds ...Kind) error {
	for _, kind := range kinds {
		if r.cache[kind] == nil {
			r.cache[kind] = make(map[int64]int64)
		}
		if r.store == nil {
			continue
		}
		loaded, err := r.store.LoadIDMappings(ctx, kind)
		if err != nil {
			return fmt.Errorf("preload %s mappings: %w", kind, err)
		}
		for legacyID, newID := range loaded {
			r.cache[kind][legacyID] = newID
		}
		r.logger.Debug("preloaded id mappings", "kind", kind, "count", len(loaded))
	}
	return nil
}

// Put records legacyID → newID for kind, persisting before caching so a
// crash never leaves a cached mapping the store does not know about. A
// conflicting mapping for the same key is an invariant violation.
func (r *Remapper) Put(ctx context.Context, kind Kind, legacyID, newID int64) error {
	if existing, ok := r.get(kind, legacyID); ok {
		if existing == newID {
			return nil
		}
		return fmt.Errorf("conflicting mapping for %s %d: have %d, got %d", kind, legacyID, existing, newID)
	}
	if r.store != nil {
		if err := r.store.UpsertIDMapping(ctx, kind, legacyID, newID); err != nil {
			return fmt.Errorf("persist %s mapping %d -> %d: %w", kind, legacyID, newID, err)
		}
	}
	if r.cache[kind] == nil {
		r.cache[kind] = make(map[int64]int64)
	}
	r.cache[kind][legacyID] = newID
	return nil
}

// Get translates a legacy ID. Returns ErrNotFound when the entity was
// never migrated.
func (r *Remapper) Get(kind Kind, legacyID int64) (int64, error) {
	if newID, ok := r.get(kind, legacyID); ok {
		return newID, nil
	}
	return 0, ErrNotFound
}

// Has reports whether a mapping exists, the skip-if-mapped check that
// makes re-runs idempotent.
func (r *Remapper) Has(kind Kind, legacyID int64) bool {
	_, ok := r.get(kind, legacyID)
	return ok
}

// Count returns the number of cached mappings for kind.
func (r *Remapper) Count(kind Kind) int {
	return len(r.cache[kind])
}

func (r *Remapper) get(kind Kind, legacyID int64) (int64, bool) {
	m, ok := r.cache[kind]
	if !ok {
		return 0, false
	}
	newID, ok := m[legacyID]
	return newID, ok
}
