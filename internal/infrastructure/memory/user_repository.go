// Package memory is a process-local UserRepository for tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*entity.User)}
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(u.Email, "") {
		return apperror.ErrConflict
	}
	u.ID = uuid.NewString()
	r.users[u.ID] = u.Clone()
	return nil
}

func (r *UserRepository) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok {
		return apperror.ErrNotFound
	}
	if r.emailTaken(u.Email, u.ID) {
		return apperror.ErrConflict
	}
	next := u.Clone()
	if _, has := next.PasswordHash(); !has {
		hash, _ := cur.PasswordHash()
		next.LoadPasswordHash(hash)
	}
	next.CreatedAt = cur.CreatedAt
	r.users[u.ID] = next
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string, opts ...repository.ReadOption) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return project(u, repository.ApplyReadOptions(opts...)), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string, opts ...repository.ReadOption) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return project(u, repository.ApplyReadOptions(opts...)), nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *UserRepository) GetByResetToken(_ context.Context, tokenHash string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tokenHash == "" {
		return nil, apperror.ErrNotFound
	}
	for _, u := range r.users {
		if u.ResetPasswordToken == tokenHash {
			return project(u, repository.ReadOptions{}), nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *UserRepository) List(_ context.Context, f repository.ListFilter) ([]*entity.User, error) {
	r.mu.RLock()
	all := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, project(u, repository.ReadOptions{}))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if f.Offset >= len(all) {
		return []*entity.User{}, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func project(u *entity.User, o repository.ReadOptions) *entity.User {
	c := u.Clone()
	if !o.IncludePassword {
		c.LoadPasswordHash("")
	}
	return c
}

var _ repository.UserRepository = (*UserRepository)(nil)
