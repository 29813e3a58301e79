package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type CommunityRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CommunityRepo) With(db DB) *CommunityRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CommunityRepo) handle() DB {
	return pick(r.pool, r.db)
}

// Follow records that followerID follows userID.
//
// Returns:
//   - error: repository.ErrConflict if the follow already exists.
func (r *CommunityRepo) Follow(ctx context.Context, userID, followerID int64) error {
	const op = "postgres.CommunityRepo.Follow"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO follows(user_id, followed_by) VALUES ($1, $2)`,
		userID, followerID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CommunityRepo) Unfollow(ctx context.Context, userID, followerID int64) error {
	const op = "postgres.CommunityRepo.Unfollow"

	tag, err := r.handle().Exec(ctx,
		`DELETE FROM follows WHERE user_id = $1 AND followed_by = $2`,
		userID, followerID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *CommunityRepo) CreateInquiry(ctx context.Context, in *domain.Inquiry) (int64, error) {
	const op = "postgres.CommunityRepo.CreateInquiry"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO inquiries(organization_id, name, email, contact_no, subject, message)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		in.OrganizationID, in.Name, in.Email, in.ContactNo, in.Subject, in.Message,
	).Scan(&in.ID, &in.CreatedAt)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return in.ID, nil
}
