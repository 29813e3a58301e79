package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	return pick(r.pool, r.db)
}

const userColumns = `id, email, password, role, is_verified, status, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified, &u.Status, &u.CreatedAt)
	return u, err
}

// Create inserts a user. Emails are stored lowercased.
//
// Returns:
//   - error: repository.ErrConflict if the email is already registered.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) (int64, error) {
	const op = "postgres.UserRepo.Create"

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Status == "" {
		u.Status = "active"
	}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO users(email, password, role, is_verified, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.Role, u.IsVerified, u.Status,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return u.ID, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const op = "postgres.UserRepo.GetByID"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return domain.User{}, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const op = "postgres.UserRepo.GetByEmail"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	))
	if err != nil {
		return domain.User{}, wrapDBErr(op, err)
	}

	return u, nil
}

// SaveProfile upserts the role-specific details document of a user.
func (r *UserRepo) SaveProfile(ctx context.Context, userID int64, role domain.Role, details []byte) error {
	const op = "postgres.UserRepo.SaveProfile"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO user_profiles(user_id, role, details)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET role = EXCLUDED.role, details = EXCLUDED.details, updated_at = now()`,
		userID, role, details,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *UserRepo) ProfileDetails(ctx context.Context, userID int64) ([]byte, error) {
	const op = "postgres.UserRepo.ProfileDetails"

	var details []byte
	err := r.handle().QueryRow(ctx,
		`SELECT details FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&details)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return details, nil
}

func (r *UserRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.handle().Exec(ctx, sql, args...)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) UpdateEmail(ctx context.Context, id int64, email string) error {
	return r.exec(ctx, "postgres.UserRepo.UpdateEmail",
		`UPDATE users SET email = $2 WHERE id = $1`,
		id, strings.ToLower(strings.TrimSpace(email)),
	)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, "postgres.UserRepo.UpdatePassword",
		`UPDATE users SET password = $2 WHERE id = $1`,
		id, hash,
	)
}

func (r *UserRepo) MarkVerified(ctx context.Context, id int64) error {
	return r.exec(ctx, "postgres.UserRepo.MarkVerified",
		`UPDATE users SET is_verified = TRUE WHERE id = $1`,
		id,
	)
}

func (r *UserRepo) ActiveArtists(ctx context.Context) ([]domain.Artist, error) {
	const op = "postgres.UserRepo.ActiveArtists"

	rows, err := r.handle().Query(ctx,
		`SELECT u.id, COALESCE(p.details->>'stage_name', ''), u.status
		 FROM users u
		 JOIN user_profiles p ON p.user_id = u.id
		 WHERE u.role = 'artist' AND u.status = 'active'
		 ORDER BY u.id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	artists, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Artist, error) {
		var a domain.Artist
		err := row.Scan(&a.ID, &a.Name, &a.Status)
		return a, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return artists, nil
}
