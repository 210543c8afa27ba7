// Package reconcile resolves legacy fact-level references (crew credits,
// nationalities, co-production countries) against the canonical target
// tables and classifies every failure instead of dropping it. Failures
// are data: nothing here returns an error for an unresolvable reference.
package reconcile

import (
	"fmt"

	"github.com/cinedata/wpmigrate/internal/lookup"
	"github.com/cinedata/wpmigrate/internal/remap"
)

// OutcomeKind is the fixed classification taxonomy for a resolution
// attempt.
type OutcomeKind string

const (
	Resolved              OutcomeKind = "resolved"
	PersonNotFound        OutcomeKind = "person_not_found"
	RoleNotFound          OutcomeKind = "role_not_found"
	LocationNotFound      OutcomeKind = "location_not_found"
	Unparsable            OutcomeKind = "unparsable"
	DuplicateWithinRecord OutcomeKind = "duplicate_within_record"
	OwnerNotFound         OutcomeKind = "owner_not_found"
)

// Ref carries enough context to reproduce a failure from the report
// alone: the owning record, the field, and the raw legacy value.
type Ref struct {
	OwnerLegacyID int64
	OwnerName     string
	Field         string
	Raw           string
}

// Outcome is the result of one resolution attempt.
type Outcome struct {
	Kind   OutcomeKind
	NewID  int64 // set when Kind is Resolved
	Ref    Ref
	Detail string
}

func (o Outcome) IsResolved() bool { return o.Kind == Resolved }

// Resolver resolves references in a fixed order: the ID remapper first,
// then the canonical cache by legacy ID, then by normalized name. Exact
// normalized match only; fuzzy matching would trade visible anomalies for
// silent mis-assignment.
type Resolver struct {
	cache    *lookup.Cache
	remapper *remap.Remapper
}

// NewResolver creates a resolver over the run's cache and remapper.
func NewResolver(cache *lookup.Cache, remapper *remap.Remapper) *Resolver {
	return &Resolver{cache: cache, remapper: remapper}
}

// ResolvePersonID resolves a decoded legacy person ID.
func (r *Resolver) ResolvePersonID(ref Ref, legacyID int64) Outcome {
	if id, err := r.remapper.Get(remap.KindPerson, legacyID); err == nil {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	if id, ok := r.cache.LookupByLegacyID(remap.KindPerson, legacyID); ok {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	return Outcome{
		Kind:   PersonNotFound,
		Ref:    ref,
		Detail: fmt.Sprintf("legacy person %d has no canonical row", legacyID),
	}
}

// ResolveRole resolves a role by its name as written in the credit.
func (r *Resolver) ResolveRole(ref Ref, name string) Outcome {
	if name == "" {
		return Outcome{Kind: Unparsable, Ref: ref, Detail: "credit has no role"}
	}
	if id, ok := r.cache.LookupByName(remap.KindRole, name); ok {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	return Outcome{
		Kind:   RoleNotFound,
		Ref:    ref,
		Detail: fmt.Sprintf("role %q has no canonical row", name),
	}
}

// ResolveCountryTerm resolves a taxonomy term reference to a root
// location: remapped term ID first, then the country's name.
func (r *Resolver) ResolveCountryTerm(ref Ref, termID int64, name string) Outcome {
	if id, err := r.remapper.Get(remap.KindLocation, termID); err == nil {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	if name != "" {
		if id, ok := r.cache.LookupRootLocation(name); ok {
			return Outcome{Kind: Resolved, NewID: id, Ref: ref}
		}
	}
	return Outcome{
		Kind:   LocationNotFound,
		Ref:    ref,
		Detail: fmt.Sprintf("term %d (%q) matches no country", termID, name),
	}
}

// ResolveOwnerMovie resolves the movie a fact row belongs to, by legacy
// ID then by slug-as-name fallback handled upstream. A miss is
// OwnerNotFound: the fact has nowhere to attach.
func (r *Resolver) ResolveOwnerMovie(ref Ref) Outcome {
	if id, err := r.remapper.Get(remap.KindMovie, ref.OwnerLegacyID); err == nil {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	if id, ok := r.cache.LookupByLegacyID(remap.KindMovie, ref.OwnerLegacyID); ok {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	if id, ok := r.cache.LookupByName(remap.KindMovie, ref.OwnerName); ok {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	return Outcome{
		Kind:   OwnerNotFound,
		Ref:    ref,
		Detail: fmt.Sprintf("movie %d (%q) has no canonical row", ref.OwnerLegacyID, ref.OwnerName),
	}
}

// ResolveOwnerPerson resolves the person a fact row belongs to, matching
// by slug the way the original data carried person identity across.
func (r *Resolver) ResolveOwnerPerson(ref Ref, slug string) Outcome {
	if id, err := r.remapper.Get(remap.KindPerson, ref.OwnerLegacyID); err == nil {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	if id, ok := r.cache.LookupByLegacyID(remap.KindPerson, ref.OwnerLegacyID); ok {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	if id, ok := r.cache.LookupByName(remap.KindPerson, ref.OwnerName); ok {
		return Outcome{Kind: Resolved, NewID: id, Ref: ref}
	}
	return Outcome{
		Kind:   OwnerNotFound,
		Ref:    ref,
		Detail: fmt.Sprintf("person %q (slug %q) has no canonical row", ref.OwnerName, slug),
	}
}

// Unparsable builds the outcome for a value no ID could be decoded from.
func (r *Resolver) Unparsable(ref Ref, detail string) Outcome {
	return Outcome{Kind: Unparsable, Ref: ref, Detail: detail}
}

// Deduper tracks resolved (owner, relationship) tuples within a run so
// the second occurrence of the same reference inside one owning record is
// reported as DuplicateWithinRecord and excluded from the write set, not
// silently merged.
type Deduper struct {
	seen map[string]bool
}

// NewDeduper creates an empty deduper, scoped to one migration pass.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]bool)}
}

// Duplicate records the tuple and reports whether it was already seen.
func (d *Deduper) Duplicate(ownerID int64, parts ...int64) bool {
	key := fmt.Sprint(ownerID, parts)
	if d.seen[key] {
		return true
	}
	d.seen[key] = true
	return false
}
