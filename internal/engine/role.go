package engine

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cinedata/wpmigrate/internal/lookup"
	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/report"
)

// departmentByKey maps the department segment of a credit meta key to the
// target schema's department enum. Unknown segments fall back to OTROS.
var departmentByKey = map[string]string{
	"direccion":          "DIRECCION",
	"guion":              "GUION",
	"fotografia":         "FOTOGRAFIA",
	"montaje":            "MONTAJE",
	"musica":             "MUSICA",
	"sonido":             "SONIDO",
	"produccion":         "PRODUCCION",
	"direccion_de_arte":  "ARTE",
	"arte":               "ARTE",
	"vestuario":          "VESTUARIO",
	"maquillaje":         "MAQUILLAJE",
	"efectos_especiales": "EFECTOS",
	"efectos":            "EFECTOS",
	"animacion":          "ANIMACION",
	"postproduccion":     "OTROS",
	"making_off":         "OTROS",
	"otros":              "OTROS",
}

// crewKeyPattern matches credit meta keys of both shapes the legacy store
// contains: ficha_tecnica_<dept>_<n>_<field> and the re-import variant
// ficha_tecnica_<dept>_import_<n>_<field>.
var crewKeyPattern = regexp.MustCompile(`^ficha_tecnica_(.+?)(_import)?_(\d+)_(persona|rol)$`)

// crewKey is a parsed credit meta key.
type crewKey struct {
	Department string
	Imported   bool
	Index      int
	Field      string
}

func parseCrewKey(key string) (crewKey, bool) {
	m := crewKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return crewKey{}, false
	}
	idx, err := strconv.Atoi(m[3])
	if err != nil {
		return crewKey{}, false
	}
	return crewKey{
		Department: m[1],
		Imported:   m[2] != "",
		Index:      idx,
		Field:      m[4],
	}, true
}

func departmentEnum(segment string) string {
	if v, ok := departmentByKey[segment]; ok {
		return v
	}
	return "OTROS"
}

// migrateRoles harvests the role vocabulary out of the credit metadata:
// every distinct trimmed role name becomes one canonical row, with the
// department derived from the meta key it first appeared under.
func (e *Engine) migrateRoles(ctx context.Context) error {
	e.setPhase(PhaseMigrating)

	usages, err := e.src.RoleUsages(ctx)
	if err != nil {
		return err
	}

	type roleSeed struct {
		Name       string
		Department string
		best       int64
	}
	byNorm := make(map[string]*roleSeed)
	var norms []string
	for _, u := range usages {
		name := strings.TrimSpace(u.Name)
		if name == "" {
			continue
		}
		norm := lookup.Normalize(name)
		seed, ok := byNorm[norm]
		if !ok {
			key, kok := parseCrewKey(u.MetaKey)
			dept := "OTROS"
			if kok {
				dept = departmentEnum(key.Department)
			}
			byNorm[norm] = &roleSeed{Name: name, Department: dept, best: u.Count}
			norms = append(norms, norm)
			continue
		}
		// Case and accent variants of the same role collapse into one
		// row; the most used spelling wins.
		if u.Count > seed.best {
			seed.Name = name
			seed.best = u.Count
		}
	}
	sort.Strings(norms)
	norms = norms[:e.capped(len(norms))]

	return e.forEachChunk(ctx, "role", len(norms), func(start, end int) (report.Totals, error) {
		var t report.Totals
		for _, norm := range norms[start:end] {
			seed := byNorm[norm]
			t.Processed++
			if _, ok := e.cache.LookupByName(remap.KindRole, seed.Name); ok {
				t.Skipped++
				continue
			}
			if e.cfg.DryRun {
				t.Migrated++
				continue
			}
			if _, err := e.store.InsertRole(ctx, seed.Name, lookup.Slugify(seed.Name), seed.Department); err != nil {
				return t, err
			}
			t.Migrated++
		}
		return t, nil
	})
}
