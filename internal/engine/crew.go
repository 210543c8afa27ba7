package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cinedata/wpmigrate/internal/phpserial"
	"github.com/cinedata/wpmigrate/internal/reconcile"
	"github.com/cinedata/wpmigrate/internal/report"
	"github.com/cinedata/wpmigrate/internal/source"
)

// credit is one (department, index) slot of a movie's technical sheet,
// with the regular and re-import variants of both fields side by side.
type credit struct {
	Department string
	Index      int

	Person       string
	Role         string
	ImportPerson string
	ImportRole   string
}

// movieCredits groups one movie's credit slots.
type movieCredits struct {
	LegacyID int64
	Title    string
	Slug     string
	Credits  []*credit
}

// groupCredits pairs _persona and _rol meta rows into credit slots, one
// per (movie, department, index), merging the _import variant into the
// same slot.
func groupCredits(rows []source.MetaRow) []*movieCredits {
	type slotKey struct {
		dept  string
		index int
	}
	byMovie := make(map[int64]*movieCredits)
	slots := make(map[int64]map[slotKey]*credit)
	var order []int64

	for _, row := range rows {
		key, ok := parseCrewKey(row.Key)
		if !ok {
			continue
		}
		mc, seen := byMovie[row.OwnerID]
		if !seen {
			mc = &movieCredits{LegacyID: row.OwnerID, Title: row.OwnerTitle, Slug: row.OwnerSlug}
			byMovie[row.OwnerID] = mc
			slots[row.OwnerID] = make(map[slotKey]*credit)
			order = append(order, row.OwnerID)
		}
		sk := slotKey{dept: key.Department, index: key.Index}
		c, seen := slots[row.OwnerID][sk]
		if !seen {
			c = &credit{Department: key.Department, Index: key.Index}
			slots[row.OwnerID][sk] = c
			mc.Credits = append(mc.Credits, c)
		}
		switch {
		case key.Field == "persona" && key.Imported:
			c.ImportPerson = row.Value
		case key.Field == "persona":
			c.Person = row.Value
		case key.Field == "rol" && key.Imported:
			c.ImportRole = row.Value
		default:
			c.Role = row.Value
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	movies := make([]*movieCredits, 0, len(order))
	for _, id := range order {
		mc := byMovie[id]
		sort.Slice(mc.Credits, func(i, j int) bool {
			a, b := mc.Credits[i], mc.Credits[j]
			if a.Department != b.Department {
				return a.Department < b.Department
			}
			return a.Index < b.Index
		})
		movies = append(movies, mc)
	}
	return movies
}

// pick chooses between a slot's regular and re-import variants: regular
// wins, re-import fills gaps, and disagreeing variants yield no usable
// reference at all.
func (c *credit) pick() (personRaw, roleRaw string, conflict bool) {
	hasRegular := strings.TrimSpace(c.Person) != ""
	hasImport := strings.TrimSpace(c.ImportPerson) != ""
	switch {
	case hasRegular && hasImport:
		if c.Person == c.ImportPerson && strings.TrimSpace(c.Role) == strings.TrimSpace(c.ImportRole) {
			return c.Person, c.Role, false
		}
		return "", "", true
	case hasRegular:
		return c.Person, c.Role, false
	case hasImport:
		return c.ImportPerson, c.ImportRole, false
	default:
		return "", "", false
	}
}

// migrateCrew resolves every credit slot of every movie against the
// canonical people and role tables and writes the resolvable ones.
// Unresolvable references are classified and reported, never dropped
// silently.
func (e *Engine) migrateCrew(ctx context.Context) error {
	e.setPhase(PhaseReconciling)

	rows, err := e.src.CrewMeta(ctx, e.cfg.Limit)
	if err != nil {
		return err
	}
	movies := groupCredits(rows)
	movies = movies[:e.capped(len(movies))]

	resolver := reconcile.NewResolver(e.cache, e.remapper)
	deduper := reconcile.NewDeduper()

	return e.forEachChunk(ctx, "crew", len(movies), func(start, end int) (report.Totals, error) {
		var t report.Totals
		for _, movie := range movies[start:end] {
			ownerRef := reconcile.Ref{OwnerLegacyID: movie.LegacyID, OwnerName: movie.Title}
			owner := resolver.ResolveOwnerMovie(ownerRef)
			if !owner.IsResolved() {
				t.Processed += len(movie.Credits)
				t.Anomalous += len(movie.Credits)
				e.recordOutcome(owner)
				continue
			}
			for _, c := range movie.Credits {
				t.Processed++
				field := fmt.Sprintf("ficha_tecnica_%s_%d", c.Department, c.Index)
				ref := reconcile.Ref{
					OwnerLegacyID: movie.LegacyID,
					OwnerName:     movie.Title,
					Field:         field,
				}

				personRaw, roleRaw, conflict := c.pick()
				if conflict {
					t.Anomalous++
					ref.Raw = c.Person
					e.recordOutcome(resolver.Unparsable(ref, "regular and re-import variants disagree"))
					continue
				}
				if personRaw == "" {
					t.Skipped++
					continue
				}
				ref.Raw = personRaw

				decoded, err := phpserial.Decode(personRaw)
				if err != nil {
					var derr *phpserial.DecodeError
					if !errors.As(err, &derr) {
						return t, err
					}
					t.Anomalous++
					e.recordOutcome(resolver.Unparsable(ref, derr.Error()))
					continue
				}
				personLegacyID, ok := decoded.First()
				if !ok {
					t.Skipped++
					continue
				}

				person := resolver.ResolvePersonID(ref, personLegacyID)
				if !person.IsResolved() {
					t.Anomalous++
					e.recordOutcome(person)
					continue
				}
				role := resolver.ResolveRole(ref, strings.TrimSpace(roleRaw))
				if !role.IsResolved() {
					t.Anomalous++
					e.recordOutcome(role)
					continue
				}

				if deduper.Duplicate(owner.NewID, person.NewID, role.NewID) {
					t.Anomalous++
					e.recordOutcome(reconcile.Outcome{
						Kind:   reconcile.DuplicateWithinRecord,
						Ref:    ref,
						Detail: fmt.Sprintf("person %d already credited with role %d", person.NewID, role.NewID),
					})
					continue
				}

				if e.cfg.DryRun {
					t.Migrated++
					continue
				}
				inserted, err := e.store.InsertCrewCredit(ctx, owner.NewID, person.NewID, role.NewID, departmentEnum(c.Department))
				if err != nil {
					return t, err
				}
				if inserted {
					t.Migrated++
				} else {
					t.Skipped++
				}
			}
		}
		return t, nil
	})
}

// recordOutcome turns a reconciliation outcome into a report anomaly.
func (e *Engine) recordOutcome(o reconcile.Outcome) {
	e.rep.Record(report.Anomaly{
		OwnerID:   o.Ref.OwnerLegacyID,
		OwnerName: o.Ref.OwnerName,
		Field:     o.Ref.Field,
		RawValue:  o.Ref.Raw,
		Reason:    string(o.Kind),
		Detail:    o.Detail,
	})
}
