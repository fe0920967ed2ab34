package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, phone_number, addresses, role, avatar_public_id, avatar_url,
		reset_password_token, reset_password_time, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	hash, _ := u.PasswordHash()
	addrs, err := json.Marshal(addressesOrEmpty(u.Addresses))
	if err != nil {
		return err
	}
	pid, url := avatarColumns(u.Avatar)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password, phone_number, addresses, role, avatar_public_id, avatar_url,
			reset_password_token, reset_password_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, u.Name, u.Email, hash, u.PhoneNumber, addrs, u.Role, pid, url,
		nullableString(u.ResetPasswordToken), u.ResetPasswordTime, u.CreatedAt)

	if err := row.Scan(&u.ID); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update rewrites the row. The password column is kept when the entity carries no hash.
func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	if _, err := uuid.Parse(u.ID); err != nil {
		return apperror.ErrNotFound
	}
	hash, _ := u.PasswordHash()
	addrs, err := json.Marshal(addressesOrEmpty(u.Addresses))
	if err != nil {
		return err
	}
	pid, url := avatarColumns(u.Avatar)

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, password = COALESCE(NULLIF($3, ''), password), phone_number = $4,
			addresses = $5, role = $6, avatar_public_id = $7, avatar_url = $8,
			reset_password_token = $9, reset_password_time = $10
		WHERE id = $11
	`, u.Name, u.Email, hash, u.PhoneNumber, addrs, u.Role, pid, url,
		nullableString(u.ResetPasswordToken), u.ResetPasswordTime, u.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if res.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string, opts ...repository.ReadOption) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.ErrNotFound
	}
	return r.getOne(ctx, "id = $1", id, repository.ApplyReadOptions(opts...))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string, opts ...repository.ReadOption) (*entity.User, error) {
	return r.getOne(ctx, "email = $1", email, repository.ApplyReadOptions(opts...))
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*entity.User, error) {
	if tokenHash == "" {
		return nil, apperror.ErrNotFound
	}
	return r.getOne(ctx, "reset_password_token = $1", tokenHash, repository.ReadOptions{})
}

func (r *UserRepository) List(ctx context.Context, f repository.ListFilter) ([]*entity.User, error) {
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.ErrNotFound
	}
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any, o repository.ReadOptions) (*entity.User, error) {
	cols := userColumns
	if o.IncludePassword {
		cols += ", password"
	}
	row := r.pool.QueryRow(ctx, `SELECT `+cols+` FROM users WHERE `+where, arg)
	u, err := scanUser(row, o.IncludePassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row, withPassword bool) (*entity.User, error) {
	var (
		u          entity.User
		addrs      []byte
		avatarID   *string
		avatarURL  *string
		resetToken *string
		resetTime  *time.Time
		hash       string
	)
	dest := []any{&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &addrs, &u.Role, &avatarID, &avatarURL,
		&resetToken, &resetTime, &u.CreatedAt}
	if withPassword {
		dest = append(dest, &hash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		if err := json.Unmarshal(addrs, &u.Addresses); err != nil {
			return nil, err
		}
	}
	if avatarID != nil && avatarURL != nil {
		u.Avatar = &entity.Avatar{PublicID: *avatarID, URL: *avatarURL}
	}
	if resetToken != nil {
		u.ResetPasswordToken = *resetToken
	}
	u.ResetPasswordTime = resetTime
	u.LoadPasswordHash(hash)
	return &u, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperror.ErrConflict
	}
	return err
}

func avatarColumns(a *entity.Avatar) (*string, *string) {
	if a == nil {
		return nil, nil
	}
	return &a.PublicID, &a.URL
}

func addressesOrEmpty(a []entity.Address) []entity.Address {
	if a == nil {
		return []entity.Address{}
	}
	return a
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ repository.UserRepository = (*UserRepository)(nil)
