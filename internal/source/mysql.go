package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/cinedata/wpmigrate/internal/retry"
)

// Config holds the legacy MySQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// MySQLReader reads the legacy WordPress-style store over MySQL.
type MySQLReader struct {
	db     *sql.DB
	policy *retry.Policy
	logger *slog.Logger
}

// OpenMySQL connects to the legacy store. The connection is read-only by
// contract: no method of the reader issues a write.
func OpenMySQL(ctx context.Context, cfg Config, policy *retry.Policy, logger *slog.Logger) (*MySQLReader, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open legacy store: %w", err)
	}

	r := &MySQLReader{db: db, policy: policy, logger: logger}
	if err := r.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("connected to legacy store", "host", cfg.Host, "database", cfg.Database)
	return r, nil
}

func (r *MySQLReader) Ping(ctx context.Context) error {
	return r.policy.Do(ctx, "ping legacy store", func(ctx context.Context) error {
		return r.db.PingContext(ctx)
	})
}

func (r *MySQLReader) Close() error {
	return r.db.Close()
}

const taxonomyQuery = `
	SELECT t.term_id, t.name, t.slug, tt.parent, tt.count
	FROM wp_terms t
	JOIN wp_term_taxonomy tt ON t.term_id = tt.term_id
	WHERE tt.taxonomy = ?
	ORDER BY t.term_id`

func (r *MySQLReader) TaxonomyTerms(ctx context.Context, taxonomy string) ([]TermRow, error) {
	var terms []TermRow
	err := r.policy.Do(ctx, "load taxonomy terms", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, taxonomyQuery, taxonomy)
		if err != nil {
			return err
		}
		defer rows.Close()

		terms = terms[:0]
		for rows.Next() {
			var t TermRow
			if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.ParentID, &t.UsageCount); err != nil {
				return err
			}
			terms = append(terms, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

const metaForKeyQuery = `
	SELECT p.ID, p.post_name, p.post_title, pm.meta_key, pm.meta_value
	FROM wp_posts p
	JOIN wp_postmeta pm ON p.ID = pm.post_id
	WHERE p.post_type = ?
	  AND p.post_status = 'publish'
	  AND pm.meta_key = ?
	  AND pm.meta_value IS NOT NULL
	  AND pm.meta_value != ''
	ORDER BY p.ID`

func (r *MySQLReader) MetaForKey(ctx context.Context, postType, metaKey string, limit int) ([]MetaRow, error) {
	query := metaForKeyQuery
	args := []any{postType, metaKey}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryMeta(ctx, "load metadata", query, args...)
}

// crewMetaQuery pulls both halves of each credit pair. The owner cap is a
// subquery over movies so a --limit smoke test sees complete credits for
// every movie it touches.
const crewMetaQuery = `
	SELECT p.ID, p.post_name, p.post_title, pm.meta_key, pm.meta_value
	FROM wp_posts p
	JOIN wp_postmeta pm ON p.ID = pm.post_id
	WHERE p.post_type = 'pelicula'
	  AND p.post_status = 'publish'
	  AND pm.meta_key LIKE 'ficha\_tecnica\_%'
	  AND (pm.meta_key LIKE '%\_persona' OR pm.meta_key LIKE '%\_rol')
	  AND pm.meta_value IS NOT NULL
	  AND pm.meta_value != ''`

func (r *MySQLReader) CrewMeta(ctx context.Context, limit int) ([]MetaRow, error) {
	query := crewMetaQuery
	args := []any{}
	if limit > 0 {
		query += `
	  AND p.ID IN (
		SELECT ID FROM (
			SELECT ID FROM wp_posts
			WHERE post_type = 'pelicula' AND post_status = 'publish'
			ORDER BY ID LIMIT ?
		) capped
	  )`
		args = append(args, limit)
	}
	query += "\n\tORDER BY p.ID, pm.meta_key"
	return r.queryMeta(ctx, "load crew metadata", query, args...)
}

const roleUsagesQuery = `
	SELECT meta_key, meta_value, COUNT(*) AS usage_count
	FROM wp_postmeta
	WHERE meta_key REGEXP 'ficha_tecnica_.+_[0-9]+_rol$'
	  AND meta_value IS NOT NULL
	  AND meta_value != ''
	GROUP BY meta_key, meta_value
	ORDER BY meta_value`

func (r *MySQLReader) RoleUsages(ctx context.Context) ([]RoleUsage, error) {
	var usages []RoleUsage
	err := r.policy.Do(ctx, "load role usages", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, roleUsagesQuery)
		if err != nil {
			return err
		}
		defer rows.Close()

		usages = usages[:0]
		for rows.Next() {
			var u RoleUsage
			if err := rows.Scan(&u.MetaKey, &u.Name, &u.Count); err != nil {
				return err
			}
			usages = append(usages, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return usages, nil
}

func (r *MySQLReader) TermNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := "SELECT term_id, name FROM wp_terms WHERE term_id IN (" + placeholders + ")"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	names := make(map[int64]string, len(ids))
	err := r.policy.Do(ctx, "resolve term names", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(names)
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			names[id] = name
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *MySQLReader) queryMeta(ctx context.Context, op, query string, args ...any) ([]MetaRow, error) {
	var out []MetaRow
	err := r.policy.Do(ctx, op, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var m MetaRow
			if err := rows.Scan(&m.OwnerID, &m.OwnerSlug, &m.OwnerTitle, &m.Key, &m.Value); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
