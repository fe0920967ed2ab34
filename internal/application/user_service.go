package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	repo "github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/search"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperror.ErrAuthentication)
	ErrUserNotFound       = fmt.Errorf("user %w", apperror.ErrNotFound)
	ErrEmailTaken         = fmt.Errorf("email %w", apperror.ErrConflict)
	ErrAddressTypeExists  = fmt.Errorf("address type %w", apperror.ErrConflict)
	ErrAddressNotFound    = fmt.Errorf("address %w", apperror.ErrNotFound)
	ErrAvatarStorage      = errors.New("avatar storage is not configured")
	ErrSelfDelete         = fmt.Errorf("cannot delete own account: %w", apperror.ErrForbidden)
)

const (
	DefaultResetTTL = 15 * time.Minute
	resetTokenBytes = 20
)

// ObjectStore is satisfied by helpers.GCSObjectStore.
type ObjectStore interface {
	Put(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

// UserIndexer mirrors users into the search index, inline or through events.
type UserIndexer interface {
	Index(ctx context.Context, u *entity.User) error
	Remove(ctx context.Context, userID string) error
}

type UserSearcher interface {
	Search(ctx context.Context, q string, size int) ([]search.UserDocument, error)
}

// ServiceOptions carries the optional collaborators of Service.
type ServiceOptions struct {
	Avatars  ObjectStore
	Indexer  UserIndexer
	Searcher UserSearcher
	ResetTTL time.Duration
	ResetURL string
}

type Service struct {
	Repo        repo.UserRepository
	Credentials *CredentialStore
	Logger      *logrus.Logger

	avatars  ObjectStore
	indexer  UserIndexer
	searcher UserSearcher
	resetTTL time.Duration
	resetURL string
	now      func() time.Time
}

// Session is an issued token and its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

func NewService(r repo.UserRepository, creds *CredentialStore, logger *logrus.Logger, opts ServiceOptions) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = DefaultResetTTL
	}
	return &Service{
		Repo:        r,
		Credentials: creds,
		Logger:      logger,
		avatars:     opts.Avatars,
		indexer:     opts.Indexer,
		searcher:    opts.Searcher,
		resetTTL:    opts.ResetTTL,
		resetURL:    strings.TrimRight(opts.ResetURL, "/"),
		now:         time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   *entity.Avatar
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, Session, error) {
	u := &entity.User{
		Name:   in.Name,
		Email:  in.Email,
		Avatar: in.Avatar,
		Role:   entity.RoleUser,
	}
	u.Normalize()
	if _, err := s.Repo.GetByEmail(ctx, u.Email); err == nil {
		return nil, Session{}, ErrEmailTaken
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, Session{}, err
	}

	u.SetPassword(in.Password)
	if err := s.Credentials.Persist(ctx, u); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, Session{}, ErrEmailTaken
		}
		return nil, Session{}, err
	}
	s.reindex(ctx, u)

	sess, err := s.issue(u)
	if err != nil {
		return nil, Session{}, err
	}
	return u, sess, nil
}

// Authenticate checks email and password and returns the user without its hash.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetByEmail(ctx, email, repo.WithPassword())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.Credentials.RejectUnknown(ctx, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.checkPassword(ctx, u, password); err != nil {
		return nil, err
	}
	u.LoadPasswordHash("")
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, Session, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, Session{}, err
	}
	return u, sess, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// PublicProfile is what any signed-in user may see about another user.
type PublicProfile struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Avatar    *entity.Avatar `json:"avatar,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (s *Service) GetUserInfo(ctx context.Context, userID string) (*PublicProfile, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{ID: u.ID, Name: u.Name, Avatar: u.Avatar, CreatedAt: u.CreatedAt}, nil
}

type UpdateProfileInput struct {
	Name            *string
	Email           *string
	PhoneNumber     *int64
	CurrentPassword string
}

// UpdateProfile changes identity fields after re-checking the current password.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.loadWithPassword(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(ctx, u, in.CurrentPassword); err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != u.Email {
			if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
				return nil, ErrEmailTaken
			} else if !errors.Is(err, apperror.ErrNotFound) {
				return nil, err
			}
		}
		u.Email = email
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = in.PhoneNumber
	}
	return s.save(ctx, u)
}

type AddressInput struct {
	Country     string
	City        string
	Address1    string
	Address2    string
	ZipCode     int
	AddressType string
}

// AddAddress appends an address; at most one address per type.
func (s *Service) AddAddress(ctx context.Context, userID string, in AddressInput) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.HasAddressType(in.AddressType) {
		return nil, ErrAddressTypeExists
	}
	u.Addresses = append(u.Addresses, entity.Address{
		ID:          uuid.NewString(),
		Country:     in.Country,
		City:        in.City,
		Address1:    in.Address1,
		Address2:    in.Address2,
		ZipCode:     in.ZipCode,
		AddressType: in.AddressType,
	})
	return s.save(ctx, u)
}

func (s *Service) DeleteAddress(ctx context.Context, userID, addressID string) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.RemoveAddress(addressID) {
		return nil, ErrAddressNotFound
	}
	return s.save(ctx, u)
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword replaces the password and issues a fresh session.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) (*entity.User, Session, error) {
	if in.NewPassword != in.ConfirmPassword {
		return nil, Session{}, apperror.Validation("confirmPassword", "does not match")
	}
	u, err := s.loadWithPassword(ctx, userID)
	if err != nil {
		return nil, Session{}, err
	}
	hash, _ := u.PasswordHash()
	ok, err := s.Credentials.VerifyPassword(ctx, in.OldPassword, hash)
	if err != nil {
		return nil, Session{}, err
	}
	if !ok {
		return nil, Session{}, apperror.Validation("oldPassword", "is incorrect")
	}

	u.SetPassword(in.NewPassword)
	if _, err := s.save(ctx, u); err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, Session{}, err
	}
	return u, sess, nil
}

// UploadAvatar stores the image under avatars/<userID>/ and drops the previous one.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*entity.User, error) {
	if s.avatars == nil {
		return nil, ErrAvatarStorage
	}
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, uuid.NewString()+ext))
	url, err := s.avatars.Put(ctx, objectPath, contentType, r)
	if err != nil {
		return nil, apperror.Internal("upload avatar", err)
	}

	var previous string
	if u.Avatar != nil && ownsAvatarObject(userID, u.Avatar.PublicID) {
		previous = u.Avatar.PublicID
	}
	u.Avatar = &entity.Avatar{PublicID: objectPath, URL: url}
	if _, err := s.save(ctx, u); err != nil {
		_ = s.avatars.Delete(ctx, objectPath)
		return nil, err
	}
	if previous != "" && previous != objectPath {
		if err := s.avatars.Delete(ctx, previous); err != nil {
			s.warn(err, "delete previous avatar failed", logrus.Fields{"user_id": userID, "object": previous})
		}
	}
	return u, nil
}

// ForgotPassword stores the digest of a fresh reset token and returns the
// raw token. Unknown emails yield ("", nil) so callers answer identically.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	token, err := helpers.RandomToken(resetTokenBytes)
	if err != nil {
		return "", apperror.Internal("generate reset token", err)
	}
	expires := s.now().Add(s.resetTTL).UTC()
	u.ResetPasswordToken = helpers.SHA256Hex(token)
	u.ResetPasswordTime = &expires
	if err := s.Credentials.Persist(ctx, u); err != nil {
		return "", err
	}
	return token, nil
}

// ResetLink builds the link a user follows to reset the password.
func (s *Service) ResetLink(token string) string {
	if s.resetURL == "" {
		return token
	}
	return s.resetURL + "/" + token
}

type ResetPasswordInput struct {
	Password        string
	ConfirmPassword string
}

func (s *Service) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) (*entity.User, Session, error) {
	if in.Password != in.ConfirmPassword {
		return nil, Session{}, apperror.Validation("confirmPassword", "does not match")
	}
	invalid := apperror.Validation("token", "is invalid or has expired")
	if token == "" {
		return nil, Session{}, invalid
	}
	u, err := s.Repo.GetByResetToken(ctx, helpers.SHA256Hex(token))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, Session{}, invalid
		}
		return nil, Session{}, err
	}
	if u.ResetPasswordTime == nil || !s.now().Before(*u.ResetPasswordTime) {
		return nil, Session{}, invalid
	}

	u.SetPassword(in.Password)
	u.ResetPasswordToken = ""
	u.ResetPasswordTime = nil
	if _, err := s.save(ctx, u); err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, Session{}, err
	}
	return u, sess, nil
}

// PageWindow clamps a requested page to what ListUsers will read.
func PageWindow(limit, offset int) repo.ListFilter {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return repo.ListFilter{Limit: limit, Offset: offset}
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	return s.Repo.List(ctx, PageWindow(limit, offset))
}

func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]search.UserDocument, error) {
	if s.searcher == nil || strings.TrimSpace(q) == "" {
		return []search.UserDocument{}, nil
	}
	return s.searcher.Search(ctx, q, size)
}

// DeleteUser removes another user's account along with its avatar.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrSelfDelete
	}
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.Avatar != nil && s.avatars != nil && ownsAvatarObject(userID, u.Avatar.PublicID) {
		if err := s.avatars.Delete(ctx, u.Avatar.PublicID); err != nil {
			s.warn(err, "delete avatar failed", logrus.Fields{"user_id": userID})
		}
	}
	if s.indexer != nil {
		if err := s.indexer.Remove(ctx, userID); err != nil {
			s.warn(err, "remove user from index failed", logrus.Fields{"user_id": userID})
		}
	}
	return nil
}

func (s *Service) save(ctx context.Context, u *entity.User) (*entity.User, error) {
	if err := s.Credentials.Persist(ctx, u); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.reindex(ctx, u)
	return u, nil
}

func (s *Service) loadWithPassword(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID, repo.WithPassword())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) checkPassword(ctx context.Context, u *entity.User, password string) error {
	hash, ok := u.PasswordHash()
	if !ok {
		return apperror.Internal("verify password", errors.New("stored hash not loaded"))
	}
	match, err := s.Credentials.VerifyPassword(ctx, password, hash)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}

// ownsAvatarObject reports whether objectPath was written by UploadAvatar
// for userID. Register accepts client-supplied avatars, which are never
// deleted from the bucket.
func ownsAvatarObject(userID, objectPath string) bool {
	return userID != "" && strings.HasPrefix(objectPath, avatarPrefix(userID)) && !strings.Contains(objectPath, "..")
}

func avatarPrefix(userID string) string {
	return "avatars/" + userID + "/"
}

func (s *Service) issue(u *entity.User) (Session, error) {
	token, exp, err := s.Credentials.IssueSessionToken(u)
	if err != nil {
		helpers.LogError(s.Logger, "issue session token failed", err, logrus.Fields{"user_id": u.ID})
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp}, nil
}

func (s *Service) reindex(ctx context.Context, u *entity.User) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Index(ctx, u); err != nil {
		s.warn(err, "index user failed", logrus.Fields{"user_id": u.ID})
	}
}

func (s *Service) warn(err error, msg string, fields logrus.Fields) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithFields(fields).Warn(msg)
	}
}
