package engine

import (
	"context"
	"errors"

	"github.com/cinedata/wpmigrate/internal/phpserial"
	"github.com/cinedata/wpmigrate/internal/reconcile"
	"github.com/cinedata/wpmigrate/internal/report"
	"github.com/cinedata/wpmigrate/internal/source"
)

// termListFact describes one fact migration whose legacy value is a
// serialized list of taxonomy term IDs resolving to root locations
// (countries).
type termListFact struct {
	entity   string
	postType string
	metaKey  string
	// resolveOwner resolves the owning record to its canonical row.
	resolveOwner func(r *reconcile.Resolver, row source.MetaRow) reconcile.Outcome
	// insert writes one (owner, location) fact row.
	insert func(ctx context.Context, ownerNewID, locationID int64) (bool, error)
}

// migrateNationalities links people to the countries their nacionalidad
// metadata names.
func (e *Engine) migrateNationalities(ctx context.Context) error {
	return e.migrateTermListFact(ctx, termListFact{
		entity:   "nationality",
		postType: "persona",
		metaKey:  "nacionalidad",
		resolveOwner: func(r *reconcile.Resolver, row source.MetaRow) reconcile.Outcome {
			ref := reconcile.Ref{OwnerLegacyID: row.OwnerID, OwnerName: row.OwnerTitle, Field: row.Key}
			return r.ResolveOwnerPerson(ref, row.OwnerSlug)
		},
		insert: func(ctx context.Context, ownerNewID, locationID int64) (bool, error) {
			return e.store.InsertNationality(ctx, ownerNewID, locationID)
		},
	})
}

// migrateCoproductions links movies to their co-production countries.
func (e *Engine) migrateCoproductions(ctx context.Context) error {
	return e.migrateTermListFact(ctx, termListFact{
		entity:   "coproduction",
		postType: "pelicula",
		metaKey:  "coproduccion",
		resolveOwner: func(r *reconcile.Resolver, row source.MetaRow) reconcile.Outcome {
			ref := reconcile.Ref{OwnerLegacyID: row.OwnerID, OwnerName: row.OwnerTitle, Field: row.Key}
			return r.ResolveOwnerMovie(ref)
		},
		insert: func(ctx context.Context, ownerNewID, locationID int64) (bool, error) {
			return e.store.InsertMovieCountry(ctx, ownerNewID, locationID)
		},
	})
}

func (e *Engine) migrateTermListFact(ctx context.Context, fact termListFact) error {
	e.setPhase(PhaseReconciling)

	rows, err := e.src.MetaForKey(ctx, fact.postType, fact.metaKey, e.cfg.Limit)
	if err != nil {
		return err
	}
	rows = rows[:e.capped(len(rows))]

	// One round trip resolves every referenced term name; decode failures
	// surface again per row below, where they can be reported with their
	// owner.
	termSet := make(map[int64]bool)
	for _, row := range rows {
		if decoded, err := phpserial.Decode(row.Value); err == nil {
			for _, id := range decoded.IDs {
				termSet[id] = true
			}
		}
	}
	termIDs := make([]int64, 0, len(termSet))
	for id := range termSet {
		termIDs = append(termIDs, id)
	}
	termNames, err := e.src.TermNames(ctx, termIDs)
	if err != nil {
		return err
	}

	resolver := reconcile.NewResolver(e.cache, e.remapper)
	deduper := reconcile.NewDeduper()

	return e.forEachChunk(ctx, fact.entity, len(rows), func(start, end int) (report.Totals, error) {
		var t report.Totals
		for _, row := range rows[start:end] {
			t.Processed++
			ref := reconcile.Ref{
				OwnerLegacyID: row.OwnerID,
				OwnerName:     row.OwnerTitle,
				Field:         row.Key,
				Raw:           row.Value,
			}

			decoded, err := phpserial.Decode(row.Value)
			if err != nil {
				var derr *phpserial.DecodeError
				if !errors.As(err, &derr) {
					return t, err
				}
				t.Anomalous++
				e.recordOutcome(resolver.Unparsable(ref, derr.Error()))
				continue
			}
			if len(decoded.IDs) == 0 {
				t.Skipped++
				continue
			}

			owner := fact.resolveOwner(resolver, row)
			if !owner.IsResolved() {
				t.Anomalous++
				e.recordOutcome(owner)
				continue
			}

			migrated := false
			for _, termID := range decoded.IDs {
				country := resolver.ResolveCountryTerm(ref, termID, termNames[termID])
				if !country.IsResolved() {
					t.Anomalous++
					e.recordOutcome(country)
					continue
				}
				if deduper.Duplicate(owner.NewID, country.NewID) {
					t.Anomalous++
					e.recordOutcome(reconcile.Outcome{
						Kind:   reconcile.DuplicateWithinRecord,
						Ref:    ref,
						Detail: "country referenced twice in one record",
					})
					continue
				}
				if e.cfg.DryRun {
					migrated = true
					continue
				}
				inserted, err := fact.insert(ctx, owner.NewID, country.NewID)
				if err != nil {
					return t, err
				}
				if inserted {
					migrated = true
				}
			}
			if migrated {
				t.Migrated++
			} else {
				t.Skipped++
			}
		}
		return t, nil
	})
}
