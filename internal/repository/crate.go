package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/cargoyard/cargoyard/internal/model"
)

// A crate counts as yanked when it has no version left that is not yanked.
const crateFilter = `
	WHERE ($1::bigint = 0 OR EXISTS (
		SELECT 1 FROM crate_owners o WHERE o.crate_id = c.id AND o.owner_id = $1
	))
	AND ($2::boolean OR EXISTS (
		SELECT 1 FROM versions v WHERE v.crate_id = c.id AND NOT v.yanked
	))
`

// ListCrates returns one page of crates matching q, ordered by name.
func (r *Repository) ListCrates(ctx context.Context, q model.CrateQuery) (*model.CratePage, error) {
	q = q.Normalize()

	var total int64
	countQuery := `SELECT COUNT(*) FROM crates c ` + crateFilter
	if err := r.pool.QueryRow(ctx, countQuery, q.UserID, q.IncludeYanked).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count crates: %w", err)
	}

	query := `
		SELECT c.id, c.name, c.description, c.downloads, c.keywords,
			COALESCE((
				SELECT v.num FROM versions v
				WHERE v.crate_id = c.id AND NOT v.yanked
				ORDER BY v.created_at DESC, v.id DESC
				LIMIT 1
			), '') AS max_version,
			NOT EXISTS (
				SELECT 1 FROM versions v WHERE v.crate_id = c.id AND NOT v.yanked
			) AS yanked,
			c.created_at, c.updated_at
		FROM crates c
	` + crateFilter + `
		ORDER BY c.name ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, q.UserID, q.IncludeYanked, q.PerPage, q.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list crates: %w", err)
	}
	defer rows.Close()

	crates := make([]*model.Crate, 0, q.PerPage)
	for rows.Next() {
		crate, err := scanCrate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crate: %w", err)
		}
		crates = append(crates, crate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crates: %w", err)
	}

	return &model.CratePage{Crates: crates, Total: total}, nil
}

// CreateCrate inserts a crate owned by ownerID.
func (r *Repository) CreateCrate(ctx context.Context, crate *model.Crate, ownerID int64) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO crates (name, description, downloads, keywords)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			crate.Name,
			crate.Description,
			crate.Downloads,
			pq.Array(crate.Keywords),
		).Scan(&crate.ID, &crate.CreatedAt, &crate.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create crate: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO crate_owners (crate_id, owner_id) VALUES ($1, $2)`,
			crate.ID, ownerID,
		); err != nil {
			return fmt.Errorf("failed to add crate owner: %w", err)
		}
		return nil
	})
}

// AddVersion records a published version of a crate.
func (r *Repository) AddVersion(ctx context.Context, crateID int64, num string, yanked bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO versions (crate_id, num, yanked) VALUES ($1, $2, $3)`,
		crateID, num, yanked,
	)
	if err != nil {
		return fmt.Errorf("failed to add version: %w", err)
	}
	return nil
}

func scanCrate(rows pgx.Rows) (*model.Crate, error) {
	var c model.Crate
	var keywords []string

	err := rows.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.Downloads,
		pq.Array(&keywords),
		&c.MaxVersion,
		&c.Yanked,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if keywords == nil {
		keywords = []string{}
	}
	c.Keywords = keywords
	return &c, nil
}
