// Package cache decorates a UserRepository with a Redis read-through profile cache.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

const DefaultTTL = 10 * time.Minute

// Every write bumps the user's generation. Profiles are stored under the
// generation read before the row, so a fill racing a write lands on a key
// nobody reads again.
func generationKey(userID string) string {
	return "user:profile:gen:" + userID
}

func profileKey(userID, gen string) string {
	return "user:profile:" + userID + ":" + gen
}

// cachedUser is the stored shape of a profile. It never holds a password;
// reset fields are kept so a cached read can be written back unchanged.
type cachedUser struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Email              string           `json:"email"`
	PhoneNumber        *int64           `json:"phone_number,omitempty"`
	Addresses          []entity.Address `json:"addresses"`
	Role               string           `json:"role"`
	Avatar             *entity.Avatar   `json:"avatar,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	ResetPasswordToken string           `json:"reset_password_token,omitempty"`
	ResetPasswordTime  *time.Time       `json:"reset_password_time,omitempty"`
}

func toCached(u *entity.User) cachedUser {
	return cachedUser{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		PhoneNumber:        u.PhoneNumber,
		Addresses:          u.Addresses,
		Role:               u.Role,
		Avatar:             u.Avatar,
		CreatedAt:          u.CreatedAt,
		ResetPasswordToken: u.ResetPasswordToken,
		ResetPasswordTime:  u.ResetPasswordTime,
	}
}

func (c cachedUser) toEntity() *entity.User {
	return &entity.User{
		ID:                 c.ID,
		Name:               c.Name,
		Email:              c.Email,
		PhoneNumber:        c.PhoneNumber,
		Addresses:          c.Addresses,
		Role:               c.Role,
		Avatar:             c.Avatar,
		CreatedAt:          c.CreatedAt,
		ResetPasswordToken: c.ResetPasswordToken,
		ResetPasswordTime:  c.ResetPasswordTime,
	}
}

// UserRepository serves password-less GetByID reads from Redis and
// moves the user to a new generation on every write. Redis failures degrade to the
// wrapped repository.
type UserRepository struct {
	next   repository.UserRepository
	rdb    helpers.RedisKV
	ttl    time.Duration
	logger *logrus.Logger
}

// NewUserRepository returns next unchanged when rdb is nil.
func NewUserRepository(next repository.UserRepository, rdb helpers.RedisKV, ttl time.Duration, logger *logrus.Logger) repository.UserRepository {
	if rdb == nil {
		return next
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &UserRepository{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	return r.next.Create(ctx, u)
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	if err := r.next.Update(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u.ID)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string, opts ...repository.ReadOption) (*entity.User, error) {
	if repository.ApplyReadOptions(opts...).IncludePassword {
		return r.next.GetByID(ctx, id, opts...)
	}

	gen, err := r.generation(ctx, id)
	if err != nil {
		r.warn(err, generationKey(id), "profile cache generation read failed")
		return r.next.GetByID(ctx, id)
	}
	key := profileKey(id, gen)
	var cu cachedUser
	hit, err := helpers.RedisGetJSON(ctx, r.rdb, key, &cu)
	if err != nil {
		r.warn(err, key, "profile cache read failed")
	}
	if hit {
		return cu.toEntity(), nil
	}

	u, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := helpers.RedisSetJSON(ctx, r.rdb, key, toCached(u), r.ttl); err != nil {
		r.warn(err, key, "profile cache write failed")
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string, opts ...repository.ReadOption) (*entity.User, error) {
	return r.next.GetByEmail(ctx, email, opts...)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*entity.User, error) {
	return r.next.GetByResetToken(ctx, tokenHash)
}

func (r *UserRepository) List(ctx context.Context, f repository.ListFilter) ([]*entity.User, error) {
	return r.next.List(ctx, f)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *UserRepository) generation(ctx context.Context, id string) (string, error) {
	gen, err := r.rdb.Get(ctx, generationKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (r *UserRepository) invalidate(ctx context.Context, id string) {
	key := generationKey(id)
	if err := r.rdb.Incr(ctx, key).Err(); err != nil {
		r.warn(err, key, "profile cache invalidation failed")
	}
}

func (r *UserRepository) warn(err error, key, msg string) {
	if r.logger != nil {
		r.logger.WithError(err).WithField("key", key).Warn(msg)
	}
}

var _ repository.UserRepository = (*UserRepository)(nil)
