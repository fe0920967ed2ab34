package application

import (
	"context"
	"sync"
	"time"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

// PasswordHasher is satisfied by helpers.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, hash, plain string) (bool, error)
}

// TokenIssuer is satisfied by helpers.JWTManager.
type TokenIssuer interface {
	Generate(subject string) (string, time.Time, error)
}

// CredentialStore owns every write of a user and the credential checks
// around it. A password reaches storage only as a hash.
type CredentialStore struct {
	repo   repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(repo repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer) *CredentialStore {
	return &CredentialStore{repo: repo, hasher: hasher, tokens: tokens, now: time.Now}
}

// PreparePersist validates u and hashes a staged password. It runs before
// every storage write and returns early when the password is unchanged.
func (s *CredentialStore) PreparePersist(ctx context.Context, u *entity.User, isNew bool) error {
	u.Normalize()
	if err := u.Validate(isNew); err != nil {
		return err
	}
	if !u.PasswordModified() {
		return nil
	}

	hash, err := s.hasher.Hash(ctx, u.PendingPassword())
	if err != nil {
		if apperror.IsInternal(err) {
			return err
		}
		return apperror.Internal("hash password", err)
	}
	u.ApplyPasswordHash(hash)
	return nil
}

// Persist creates u when it has no id yet and updates it otherwise.
// Storage is not called when preparation fails.
func (s *CredentialStore) Persist(ctx context.Context, u *entity.User) error {
	isNew := u.ID == ""
	if err := s.PreparePersist(ctx, u, isNew); err != nil {
		return err
	}
	if !isNew {
		return s.repo.Update(ctx, u)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	return s.repo.Create(ctx, u)
}

// IssueSessionToken signs a token whose subject is the user id.
func (s *CredentialStore) IssueSessionToken(u *entity.User) (string, time.Time, error) {
	if u == nil || u.ID == "" {
		return "", time.Time{}, apperror.Validation("id", "user has no identifier")
	}
	return s.tokens.Generate(u.ID)
}

// VerifyPassword compares plain against storedHash without touching state.
// A mismatch is (false, nil); callers turn it into apperror.ErrAuthentication.
func (s *CredentialStore) VerifyPassword(ctx context.Context, plain, storedHash string) (bool, error) {
	return s.hasher.Compare(ctx, storedHash, plain)
}

// RejectUnknown spends one hash comparison against a fixed hash so an
// unknown account costs about as much as a wrong password.
func (s *CredentialStore) RejectUnknown(ctx context.Context, plain string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(ctx, "unknown-account-placeholder")
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Compare(ctx, s.dummyHash, plain)
}
