package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/retry"
)

// Config holds the target PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Postgres implements Store over database/sql with the pgx stdlib driver.
type Postgres struct {
	db     *sql.DB
	policy *retry.Policy
	logger *slog.Logger
}

// OpenPostgres connects to the target store.
func OpenPostgres(ctx context.Context, cfg Config, policy *retry.Policy, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("pgx", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open target store: %w", err)
	}

	p := &Postgres{db: db, policy: policy, logger: logger}
	if err := p.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("connected to target store", "host", cfg.Host, "database", cfg.Database)
	return p, nil
}

func buildDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.policy.Do(ctx, "ping target store", func(ctx context.Context) error {
		return p.db.PingContext(ctx)
	})
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// CheckSchema verifies the tables the migration writes to exist. Run by
// the doctor command and at the start of apply runs; a missing table is a
// configuration error, not something to retry.
func (p *Postgres) CheckSchema(ctx context.Context) error {
	tables := []string{
		"locations", "people", "roles", "movies",
		"movie_crew", "person_nationalities", "movie_countries", "id_mappings",
	}
	return p.policy.Do(ctx, "check target schema", func(ctx context.Context) error {
		for _, table := range tables {
			var reg sql.NullString
			if err := p.db.QueryRowContext(ctx, `SELECT to_regclass($1)`, table).Scan(&reg); err != nil {
				return err
			}
			if !reg.Valid {
				return retry.Permanent(fmt.Errorf("target table %q does not exist", table))
			}
		}
		return nil
	})
}

func (p *Postgres) Locations(ctx context.Context) ([]LocationRow, error) {
	var out []LocationRow
	err := p.policy.Do(ctx, "load locations", func(ctx context.Context) error {
		rows, err := p.db.QueryContext(ctx, `SELECT id, name, slug, parent_id FROM locations ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var l LocationRow
			var parent sql.NullInt64
			if err := rows.Scan(&l.ID, &l.Name, &l.Slug, &parent); err != nil {
				return err
			}
			if parent.Valid {
				v := parent.Int64
				l.ParentID = &v
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) People(ctx context.Context) ([]PersonRow, error) {
	var out []PersonRow
	err := p.policy.Do(ctx, "load people", func(ctx context.Context) error {
		rows, err := p.db.QueryContext(ctx,
			`SELECT id, COALESCE(name, ''), COALESCE(slug, ''), legacy_id FROM people ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var pr PersonRow
			var legacy sql.NullInt64
			if err := rows.Scan(&pr.ID, &pr.Name, &pr.Slug, &legacy); err != nil {
				return err
			}
			pr.LegacyID = legacy.Int64
			out = append(out, pr)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) Roles(ctx context.Context) ([]RoleRow, error) {
	var out []RoleRow
	err := p.policy.Do(ctx, "load roles", func(ctx context.Context) error {
		rows, err := p.db.QueryContext(ctx,
			`SELECT id, name, COALESCE(slug, ''), COALESCE(department, '') FROM roles ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var r RoleRow
			if err := rows.Scan(&r.ID, &r.Name, &r.Slug, &r.Department); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) Movies(ctx context.Context) ([]MovieRow, error) {
	var out []MovieRow
	err := p.policy.Do(ctx, "load movies", func(ctx context.Context) error {
		rows, err := p.db.QueryContext(ctx,
			`SELECT id, COALESCE(title, ''), COALESCE(slug, ''), legacy_id FROM movies ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var m MovieRow
			var legacy sql.NullInt64
			if err := rows.Scan(&m.ID, &m.Title, &m.Slug, &legacy); err != nil {
				return err
			}
			m.LegacyID = legacy.Int64
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) InsertLocation(ctx context.Context, name, slug string, parentID *int64) (int64, error) {
	var id int64
	err := p.policy.Do(ctx, "insert location", func(ctx context.Context) error {
		var parent sql.NullInt64
		if parentID != nil {
			parent = sql.NullInt64{Int64: *parentID, Valid: true}
		}
		return p.db.QueryRowContext(ctx,
			`INSERT INTO locations (name, slug, parent_id) VALUES ($1, $2, $3) RETURNING id`,
			name, slug, parent).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) InsertRole(ctx context.Context, name, slug, department string) (int64, error) {
	var id int64
	err := p.policy.Do(ctx, "insert role", func(ctx context.Context) error {
		return p.db.QueryRowContext(ctx,
			`INSERT INTO roles (name, slug, department) VALUES ($1, $2, $3) RETURNING id`,
			name, slug, department).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) InsertCrewCredit(ctx context.Context, movieID, personID, roleID int64, department string) (bool, error) {
	return p.insertFact(ctx, "insert crew credit",
		`INSERT INTO movie_crew (movie_id, person_id, role_id, department)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (movie_id, person_id, role_id) DO NOTHING`,
		movieID, personID, roleID, department)
}

func (p *Postgres) InsertNationality(ctx context.Context, personID, locationID int64) (bool, error) {
	return p.insertFact(ctx, "insert nationality",
		`INSERT INTO person_nationalities (person_id, location_id)
		 VALUES ($1, $2)
		 ON CONFLICT (person_id, location_id) DO NOTHING`,
		personID, locationID)
}

func (p *Postgres) InsertMovieCountry(ctx context.Context, movieID, locationID int64) (bool, error) {
	return p.insertFact(ctx, "insert movie country",
		`INSERT INTO movie_countries (movie_id, location_id)
		 VALUES ($1, $2)
		 ON CONFLICT (movie_id, location_id) DO NOTHING`,
		movieID, locationID)
}

func (p *Postgres) insertFact(ctx context.Context, op, query string, args ...any) (bool, error) {
	var inserted bool
	err := p.policy.Do(ctx, op, func(ctx context.Context) error {
		res, err := p.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// UpsertIDMapping inserts the mapping row, tolerating a replay of the same
// mapping. A conflicting new ID for an existing (kind, legacy_id) pair is
// an invariant violation surfaced as a permanent error.
func (p *Postgres) UpsertIDMapping(ctx context.Context, kind remap.Kind, legacyID, newID int64) error {
	return p.policy.Do(ctx, "upsert id mapping", func(ctx context.Context) error {
		res, err := p.db.ExecContext(ctx,
			`INSERT INTO id_mappings (entity_type, legacy_id, new_id)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (entity_type, legacy_id) DO NOTHING`,
			string(kind), legacyID, newID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		var existing int64
		err = p.db.QueryRowContext(ctx,
			`SELECT new_id FROM id_mappings WHERE entity_type = $1 AND legacy_id = $2`,
			string(kind), legacyID).Scan(&existing)
		if err != nil {
			return err
		}
		if existing != newID {
			return retry.Permanent(fmt.Errorf(
				"id mapping conflict for %s %d: stored %d, attempted %d", kind, legacyID, existing, newID))
		}
		return nil
	})
}

func (p *Postgres) HasIDMapping(ctx context.Context, kind remap.Kind, legacyID int64) (bool, error) {
	var found bool
	err := p.policy.Do(ctx, "check id mapping", func(ctx context.Context) error {
		var one int
		err := p.db.QueryRowContext(ctx,
			`SELECT 1 FROM id_mappings WHERE entity_type = $1 AND legacy_id = $2`,
			string(kind), legacyID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (p *Postgres) LoadIDMappings(ctx context.Context, kind remap.Kind) (map[int64]int64, error) {
	mappings := make(map[int64]int64)
	err := p.policy.Do(ctx, "load id mappings", func(ctx context.Context) error {
		rows, err := p.db.QueryContext(ctx,
			`SELECT legacy_id, new_id FROM id_mappings WHERE entity_type = $1`, string(kind))
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(mappings)
		for rows.Next() {
			var legacyID, newID int64
			if err := rows.Scan(&legacyID, &newID); err != nil {
				return err
			}
			mappings[legacyID] = newID
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return mappings, nil
}
