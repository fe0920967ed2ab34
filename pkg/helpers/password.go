package helpers

import (
	"context"
	"errors"
	"expvar"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

var (
	hashedCounter  = expvar.NewInt("credentials_hashed")
	checkedCounter = expvar.NewInt("password_checks")
)

// Hasher hashes and compares passwords with bcrypt. At most `workers` bcrypt
// computations run at once; callers wait for a slot or their context.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

func (h *Hasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of plain.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", apperror.Internal("hash password", err)
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", apperror.Internal("hash password", err)
	}
	hashedCounter.Add(1)
	return string(b), nil
}

// Compare reports whether plain matches hash. A mismatch is (false, nil);
// only a malformed hash or a cancelled context yields an error.
func (h *Hasher) Compare(ctx context.Context, hash, plain string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, apperror.Internal("compare password", err)
	}
	defer h.sem.Release(1)

	checkedCounter.Add(1)
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperror.Internal("compare password", err)
	}
}

// HashCost extracts the work factor of an existing hash.
func HashCost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}
