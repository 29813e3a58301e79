package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

// CatalogRepo stores ticket types, instructors, performers and speakers in
// one table discriminated by kind.
type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	return pick(r.pool, r.db)
}

const catalogColumns = `id, kind, user_id, name, description, color, status, created_at`

func scanCatalogItem(row pgx.Row) (domain.CatalogItem, error) {
	var it domain.CatalogItem
	err := row.Scan(&it.ID, &it.Kind, &it.UserID, &it.Name, &it.Description, &it.Color, &it.Status, &it.CreatedAt)
	return it, err
}

func (r *CatalogRepo) Create(ctx context.Context, item *domain.CatalogItem) (int64, error) {
	const op = "postgres.CatalogRepo.Create"

	if item.Status == "" {
		item.Status = "active"
	}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO catalog_items(kind, user_id, name, description, color, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		item.Kind, item.UserID, item.Name, item.Description, item.Color, item.Status,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return item.ID, nil
}

func (r *CatalogRepo) Get(ctx context.Context, kind domain.CatalogKind, id int64) (domain.CatalogItem, error) {
	const op = "postgres.CatalogRepo.Get"

	it, err := scanCatalogItem(r.handle().QueryRow(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE kind = $1 AND id = $2`,
		kind, id,
	))
	if err != nil {
		return domain.CatalogItem{}, wrapDBErr(op, err)
	}

	return it, nil
}

func (r *CatalogRepo) ListByOwner(
	ctx context.Context,
	kind domain.CatalogKind,
	userID int64,
) ([]domain.CatalogItem, error) {
	const op = "postgres.CatalogRepo.ListByOwner"

	rows, err := r.handle().Query(ctx,
		`SELECT `+catalogColumns+`
		 FROM catalog_items
		 WHERE kind = $1 AND user_id = $2
		 ORDER BY id`,
		kind, userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CatalogItem, error) {
		return scanCatalogItem(row)
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return items, nil
}

func (r *CatalogRepo) Update(ctx context.Context, item domain.CatalogItem) error {
	const op = "postgres.CatalogRepo.Update"

	tag, err := r.handle().Exec(ctx,
		`UPDATE catalog_items
		 SET name = $3, description = $4, color = $5
		 WHERE kind = $1 AND id = $2`,
		item.Kind, item.ID, item.Name, item.Description, item.Color,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *CatalogRepo) SetStatus(ctx context.Context, kind domain.CatalogKind, id int64, status string) error {
	const op = "postgres.CatalogRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE catalog_items SET status = $3 WHERE kind = $1 AND id = $2`,
		kind, id, status,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *CatalogRepo) Names(ctx context.Context, kind domain.CatalogKind, ids []int64) (map[int64]string, error) {
	const op = "postgres.CatalogRepo.Names"

	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.handle().Query(ctx,
		`SELECT id, name FROM catalog_items WHERE kind = $1 AND id = ANY($2)`,
		kind, ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
