package repository

import (
	"context"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
)

// ReadOptions controls the projection of a read.
type ReadOptions struct {
	IncludePassword bool
}

type ReadOption func(*ReadOptions)

// WithPassword opts a read into loading the password hash, which every read
// omits otherwise.
func WithPassword() ReadOption {
	return func(o *ReadOptions) { o.IncludePassword = true }
}

func ApplyReadOptions(opts ...ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ListFilter pages through users, newest first.
type ListFilter struct {
	Limit  int
	Offset int
}

// UserRepository defines the storage collaborator of the credential store.
// Lookups that find nothing return apperror.ErrNotFound; email collisions
// return apperror.ErrConflict. Update writes the password only when the
// entity carries a hash.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string, opts ...ReadOption) (*entity.User, error)
	GetByEmail(ctx context.Context, email string, opts ...ReadOption) (*entity.User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*entity.User, error)
	List(ctx context.Context, f ListFilter) ([]*entity.User, error)
	Delete(ctx context.Context, id string) error
}
