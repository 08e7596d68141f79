// Package postgres implements the do-not-contact repository against
// PostgreSQL. The four matchable columns are NOT NULL DEFAULT '' (empty
// string means absent, matching the engine's convention) and each carries a
// partial index on non-empty values — lookups stay index-backed at list
// sizes in the tens of millions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/service/dnc"
)

// DNCRepo implements dnc.Repository against PostgreSQL.
type DNCRepo struct{ db *sql.DB }

// NewDNCRepo creates a Postgres-backed do-not-contact repository.
func NewDNCRepo(db *sql.DB) *DNCRepo { return &DNCRepo{db: db} }

// Matchable column names. Only these may be interpolated into queries.
const (
	colEmail        = "normalized_email"
	colExternalIDA  = "external_id_a"
	colExternalIDB  = "external_id_b"
	colCompoundHash = "compound_hash"
)

func (r *DNCRepo) hasValue(ctx context.Context, column, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM crm_dnc_entries WHERE %s = $1)`, column),
		value,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dnc lookup on %s: %w", column, err)
	}
	return exists, nil
}

func (r *DNCRepo) HasEmail(ctx context.Context, email string) (bool, error) {
	return r.hasValue(ctx, colEmail, email)
}

func (r *DNCRepo) HasExternalIDA(ctx context.Context, id string) (bool, error) {
	return r.hasValue(ctx, colExternalIDA, id)
}

func (r *DNCRepo) HasExternalIDB(ctx context.Context, id string) (bool, error) {
	return r.hasValue(ctx, colExternalIDB, id)
}

func (r *DNCRepo) HasCompoundHash(ctx context.Context, hash string) (bool, error) {
	return r.hasValue(ctx, colCompoundHash, hash)
}

func (r *DNCRepo) matchColumn(ctx context.Context, column string, values []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(values))
	if len(values) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT %s FROM crm_dnc_entries WHERE %s = ANY($1)`, column, column),
		pq.Array(values),
	)
	if err != nil {
		return nil, fmt.Errorf("bulk dnc lookup on %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		out[v] = struct{}{}
	}
	return out, rows.Err()
}

// MatchValues runs one membership query per populated field, concurrently.
// Each goroutine fills a distinct field of the result.
func (r *DNCRepo) MatchValues(ctx context.Context, q dnc.ValueQuery) (*dnc.ValueMatches, error) {
	out := dnc.NewValueMatches()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := r.matchColumn(ctx, colEmail, q.Emails)
		if err == nil {
			out.Emails = m
		}
		return err
	})
	g.Go(func() error {
		m, err := r.matchColumn(ctx, colExternalIDA, q.ExternalIDAs)
		if err == nil {
			out.ExternalIDAs = m
		}
		return err
	})
	g.Go(func() error {
		m, err := r.matchColumn(ctx, colExternalIDB, q.ExternalIDBs)
		if err == nil {
			out.ExternalIDBs = m
		}
		return err
	})
	g.Go(func() error {
		m, err := r.matchColumn(ctx, colCompoundHash, q.CompoundHashes)
		if err == nil {
			out.CompoundHashes = m
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DNCRepo) Insert(ctx context.Context, e *domain.SuppressionEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_dnc_entries (id, normalized_email, external_id_a, external_id_b, compound_hash, reason, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (normalized_email, external_id_a, external_id_b, compound_hash) DO NOTHING
	`, e.ID, e.NormalizedEmail, e.ExternalIDA, e.ExternalIDB, e.CompoundHash, e.Reason, e.Source)
	if err != nil {
		return fmt.Errorf("insert dnc entry: %w", err)
	}
	return nil
}

func (r *DNCRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM crm_dnc_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dnc entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return dnc.ErrNotFound
	}
	return nil
}

func (r *DNCRepo) List(ctx context.Context, f dnc.ListFilter) ([]domain.SuppressionEntry, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ""
	args := []interface{}{}
	if f.Source != "" {
		args = append(args, f.Source)
		where = fmt.Sprintf("WHERE source = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		clause := fmt.Sprintf("(normalized_email ILIKE $%d OR reason ILIKE $%d)", len(args), len(args))
		if where == "" {
			where = "WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, normalized_email, external_id_a, external_id_b, compound_hash, reason, source, created_at
		FROM crm_dnc_entries
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list dnc entries: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		var e domain.SuppressionEntry
		if err := rows.Scan(&e.ID, &e.NormalizedEmail, &e.ExternalIDA, &e.ExternalIDB,
			&e.CompoundHash, &e.Reason, &e.Source, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dnc entry: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *DNCRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crm_dnc_entries`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dnc entries: %w", err)
	}
	return n, nil
}

func (r *DNCRepo) AllEntries(ctx context.Context) ([]domain.SuppressionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, normalized_email, external_id_a, external_id_b, compound_hash, reason, source, created_at
		FROM crm_dnc_entries
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("all dnc entries: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		var e domain.SuppressionEntry
		if err := rows.Scan(&e.ID, &e.NormalizedEmail, &e.ExternalIDA, &e.ExternalIDB,
			&e.CompoundHash, &e.Reason, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dnc entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
