package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinedata/wpmigrate/internal/source"
)

func TestParseCrewKey(t *testing.T) {
	tests := []struct {
		key  string
		want crewKey
		ok   bool
	}{
		{"ficha_tecnica_direccion_0_persona", crewKey{"direccion", false, 0, "persona"}, true},
		{"ficha_tecnica_fotografia_12_rol", crewKey{"fotografia", false, 12, "rol"}, true},
		{"ficha_tecnica_sonido_import_3_persona", crewKey{"sonido", true, 3, "persona"}, true},
		{"ficha_tecnica_direccion_de_arte_1_rol", crewKey{"direccion_de_arte", false, 1, "rol"}, true},
		{"ficha_tecnica_direccion_de_arte_import_1_rol", crewKey{"direccion_de_arte", true, 1, "rol"}, true},
		{"ficha_tecnica_montaje_0_comentario", crewKey{}, false},
		{"nacionalidad", crewKey{}, false},
		{"ficha_tecnica_", crewKey{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCrewKey(tt.key)
		require.Equal(t, tt.ok, ok, "key %q", tt.key)
		if ok {
			assert.Equal(t, tt.want, got, "key %q", tt.key)
		}
	}
}

func TestDepartmentEnum(t *testing.T) {
	assert.Equal(t, "DIRECCION", departmentEnum("direccion"))
	assert.Equal(t, "ARTE", departmentEnum("direccion_de_arte"))
	assert.Equal(t, "ARTE", departmentEnum("arte"))
	assert.Equal(t, "EFECTOS", departmentEnum("efectos_especiales"))
	assert.Equal(t, "OTROS", departmentEnum("postproduccion"))
	assert.Equal(t, "OTROS", departmentEnum("algo_nuevo"))
}

func TestGroupCredits(t *testing.T) {
	rows := []source.MetaRow{
		{OwnerID: 2, OwnerTitle: "B", Key: "ficha_tecnica_direccion_0_persona", Value: "10"},
		{OwnerID: 1, OwnerTitle: "A", Key: "ficha_tecnica_sonido_1_persona", Value: "11"},
		{OwnerID: 1, OwnerTitle: "A", Key: "ficha_tecnica_sonido_1_rol", Value: "Sonidista"},
		{OwnerID: 1, OwnerTitle: "A", Key: "ficha_tecnica_sonido_import_1_persona", Value: "11"},
		{OwnerID: 1, OwnerTitle: "A", Key: "ficha_tecnica_sonido_0_persona", Value: "12"},
		{OwnerID: 1, OwnerTitle: "A", Key: "unrelated_meta", Value: "x"},
	}

	movies := groupCredits(rows)
	require.Len(t, movies, 2)
	assert.Equal(t, int64(1), movies[0].LegacyID, "movies sorted by legacy ID")

	require.Len(t, movies[0].Credits, 2)
	// Credits ordered by (department, index); the import variant landed
	// in the same slot as the regular fields.
	first, second := movies[0].Credits[0], movies[0].Credits[1]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "12", first.Person)
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, "11", second.Person)
	assert.Equal(t, "11", second.ImportPerson)
	assert.Equal(t, "Sonidista", second.Role)
}

func TestCreditPick(t *testing.T) {
	tests := []struct {
		name       string
		credit     credit
		wantPerson string
		wantRole   string
		conflict   bool
	}{
		{"regular only", credit{Person: "10", Role: "Director"}, "10", "Director", false},
		{"import only", credit{ImportPerson: "10", ImportRole: "Director"}, "10", "Director", false},
		{"agreeing variants", credit{Person: "10", Role: "Director", ImportPerson: "10", ImportRole: "Director"}, "10", "Director", false},
		{"disagreeing variants", credit{Person: "10", Role: "Director", ImportPerson: "11", ImportRole: "Director"}, "", "", true},
		{"empty slot", credit{}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			person, role, conflict := tt.credit.pick()
			assert.Equal(t, tt.wantPerson, person)
			assert.Equal(t, tt.wantRole, role)
			assert.Equal(t, tt.conflict, conflict)
		})
	}
}
