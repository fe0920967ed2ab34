package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/memory"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/search"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

type fixture struct {
	svc  *Service
	repo *memory.UserRepository
	jwt  *helpers.JWTManager
}

func newFixture(t *testing.T, opts ServiceOptions) fixture {
	t.Helper()
	repo := memory.NewUserRepository()
	jwt := newJWT(t)
	creds := NewCredentialStore(repo, helpers.NewHasher(4, 2), jwt)
	return fixture{svc: NewService(repo, creds, helpers.NewDiscardLogger(), opts), repo: repo, jwt: jwt}
}

func (f fixture) register(t *testing.T, name, email, password string) *entity.User {
	t.Helper()
	u, _, err := f.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	u, sess, err := f.svc.Register(context.Background(), RegisterInput{Name: "Ann", Email: " Ann@X.io ", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ann@x.io", u.Email)

	sub, err := f.jwt.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)

	stored, err := f.repo.GetByID(context.Background(), u.ID, repository.WithPassword())
	require.NoError(t, err)
	hash, ok := stored.PasswordHash()
	require.True(t, ok)
	assert.NotEqual(t, "hunter22", hash)

	plain, err := f.repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	_, ok = plain.PasswordHash()
	assert.False(t, ok)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	f.register(t, "Ann", "ann@x.io", "hunter22")

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Name: "Other", Email: "ANN@x.io", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")

	u, sess, err := f.svc.Login(context.Background(), "Ann@x.io", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)
	assert.NotEmpty(t, sess.Token)
	_, ok := u.PasswordHash()
	assert.False(t, ok)

	_, _, err = f.svc.Login(context.Background(), "ann@x.io", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, apperror.ErrAuthentication)

	_, _, err = f.svc.Login(context.Background(), "nobody@x.io", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetProfileAndUserInfo(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")

	p, err := f.svc.GetUserInfo(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.Name)

	_, err = f.svc.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")
	f.register(t, "Bob", "bob@x.io", "hunter22")
	name, email, phone := "Ann B.", "Ann.B@x.io", int64(15550001)

	_, err := f.svc.UpdateProfile(context.Background(), reg.ID, UpdateProfileInput{Name: &name, CurrentPassword: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	taken := "bob@x.io"
	_, err = f.svc.UpdateProfile(context.Background(), reg.ID, UpdateProfileInput{Email: &taken, CurrentPassword: "hunter22"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	u, err := f.svc.UpdateProfile(context.Background(), reg.ID, UpdateProfileInput{
		Name: &name, Email: &email, PhoneNumber: &phone, CurrentPassword: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", u.Name)
	assert.Equal(t, "ann.b@x.io", u.Email)

	_, _, err = f.svc.Login(context.Background(), "ann.b@x.io", "hunter22")
	require.NoError(t, err)
}

func TestAddresses(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")
	ctx := context.Background()

	u, err := f.svc.AddAddress(ctx, reg.ID, AddressInput{City: "Oslo", ZipCode: 150, AddressType: "home"})
	require.NoError(t, err)
	require.Len(t, u.Addresses, 1)
	addrID := u.Addresses[0].ID
	assert.NotEmpty(t, addrID)

	_, err = f.svc.AddAddress(ctx, reg.ID, AddressInput{City: "Bergen", AddressType: "Home"})
	assert.ErrorIs(t, err, ErrAddressTypeExists)

	u, err = f.svc.DeleteAddress(ctx, reg.ID, addrID)
	require.NoError(t, err)
	assert.Empty(t, u.Addresses)

	_, err = f.svc.DeleteAddress(ctx, reg.ID, addrID)
	assert.ErrorIs(t, err, ErrAddressNotFound)

	_, _, err = f.svc.Login(ctx, "ann@x.io", "hunter22")
	require.NoError(t, err, "address writes must keep the stored hash")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")
	ctx := context.Background()

	_, _, err := f.svc.ChangePassword(ctx, reg.ID, ChangePasswordInput{OldPassword: "hunter22", NewPassword: "newpass1", ConfirmPassword: "other"})
	var ve *apperror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "confirmPassword", ve.Field)

	_, _, err = f.svc.ChangePassword(ctx, reg.ID, ChangePasswordInput{OldPassword: "bad", NewPassword: "newpass1", ConfirmPassword: "newpass1"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "oldPassword", ve.Field)

	_, sess, err := f.svc.ChangePassword(ctx, reg.ID, ChangePasswordInput{OldPassword: "hunter22", NewPassword: "newpass1", ConfirmPassword: "newpass1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	_, _, err = f.svc.Login(ctx, "ann@x.io", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "ann@x.io", "newpass1")
	require.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t, ServiceOptions{ResetTTL: time.Minute, ResetURL: "https://shop.example/reset/"})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")
	ctx := context.Background()

	token, err := f.svc.ForgotPassword(ctx, "nobody@x.io")
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = f.svc.ForgotPassword(ctx, "ANN@x.io")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "https://shop.example/reset/"+token, f.svc.ResetLink(token))

	stored, err := f.repo.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, helpers.SHA256Hex(token), stored.ResetPasswordToken)
	require.NotNil(t, stored.ResetPasswordTime)

	_, _, err = f.svc.ResetPassword(ctx, "wrong-token", ResetPasswordInput{Password: "fresh123", ConfirmPassword: "fresh123"})
	var ve *apperror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "token", ve.Field)

	u, sess, err := f.svc.ResetPassword(ctx, token, ResetPasswordInput{Password: "fresh123", ConfirmPassword: "fresh123"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)
	assert.NotEmpty(t, sess.Token)
	assert.Empty(t, u.ResetPasswordToken)
	assert.Nil(t, u.ResetPasswordTime)

	_, _, err = f.svc.Login(ctx, "ann@x.io", "fresh123")
	require.NoError(t, err)

	_, _, err = f.svc.ResetPassword(ctx, token, ResetPasswordInput{Password: "again123", ConfirmPassword: "again123"})
	require.ErrorAs(t, err, &ve)
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t, ServiceOptions{ResetTTL: time.Minute})
	f.register(t, "Ann", "ann@x.io", "hunter22")
	ctx := context.Background()

	token, err := f.svc.ForgotPassword(ctx, "ann@x.io")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = f.svc.ResetPassword(ctx, token, ResetPasswordInput{Password: "fresh123", ConfirmPassword: "fresh123"})
	var ve *apperror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "token", ve.Field)
}

func TestUploadAvatar(t *testing.T) {
	store := new(MockObjectStore)
	f := newFixture(t, ServiceOptions{Avatars: store})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")
	ctx := context.Background()

	store.On("Put", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "avatars/"+reg.ID+"/") && strings.HasSuffix(p, ".png")
	}), "image/png", mock.Anything).Return("https://cdn/first.png", nil).Once()

	u, err := f.svc.UploadAvatar(ctx, reg.ID, strings.NewReader("img"), "Me.PNG", "image/png")
	require.NoError(t, err)
	require.NotNil(t, u.Avatar)
	assert.Equal(t, "https://cdn/first.png", u.Avatar.URL)
	first := u.Avatar.PublicID

	store.On("Put", mock.Anything, mock.Anything, "image/png", mock.Anything).Return("https://cdn/second.png", nil).Once()
	store.On("Delete", mock.Anything, first).Return(nil).Once()

	u, err = f.svc.UploadAvatar(ctx, reg.ID, strings.NewReader("img2"), "again.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/second.png", u.Avatar.URL)
	assert.NotEqual(t, first, u.Avatar.PublicID)
	store.AssertExpectations(t)
}

func TestUploadAvatar_NotConfigured(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	reg := f.register(t, "Ann", "ann@x.io", "hunter22")
	_, err := f.svc.UploadAvatar(context.Background(), reg.ID, strings.NewReader("x"), "a.png", "image/png")
	assert.ErrorIs(t, err, ErrAvatarStorage)
}

func TestIndexerReceivesWrites(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("Index", mock.Anything, mock.AnythingOfType("*entity.User")).Return(errors.New("es down"))
	idx.On("Remove", mock.Anything, mock.Anything).Return(nil)
	f := newFixture(t, ServiceOptions{Indexer: idx, Searcher: idx})
	admin := f.register(t, "Admin", "admin@x.io", "hunter22")
	ann := f.register(t, "Ann", "ann@x.io", "hunter22")

	require.NoError(t, f.svc.DeleteUser(context.Background(), admin.ID, ann.ID))
	idx.AssertNumberOfCalls(t, "Index", 2)
	idx.AssertCalled(t, "Remove", mock.Anything, ann.ID)

	_, err := f.svc.GetProfile(context.Background(), ann.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUser_Rules(t *testing.T) {
	f := newFixture(t, ServiceOptions{})
	admin := f.register(t, "Admin", "admin@x.io", "hunter22")

	assert.ErrorIs(t, f.svc.DeleteUser(context.Background(), admin.ID, admin.ID), apperror.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteUser(context.Background(), admin.ID, "missing"), ErrUserNotFound)
}

func TestListAndSearch(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("Index", mock.Anything, mock.Anything).Return(nil)
	idx.On("Search", mock.Anything, "ann", 5).Return([]search.UserDocument{{ID: "1", Email: "ann@x.io"}}, nil)
	f := newFixture(t, ServiceOptions{Indexer: idx, Searcher: idx})
	f.register(t, "Ann", "ann@x.io", "hunter22")
	f.register(t, "Bob", "bob@x.io", "hunter22")

	users, err := f.svc.ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = f.svc.ListUsers(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	hits, err := f.svc.SearchUsers(context.Background(), "ann", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = f.svc.SearchUsers(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLogin_UnknownEmailStillComparesHash(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("GetByEmail", mock.Anything, "nobody@x.io").Return(nil, ErrUserNotFound)
	hasher := new(MockHasher)
	hasher.On("Hash", mock.Anything, mock.Anything).Return("$2a$10$fixed", nil).Once()
	hasher.On("Compare", mock.Anything, "$2a$10$fixed", "hunter22").Return(false, nil).Once()
	svc := NewService(repo, NewCredentialStore(repo, hasher, newJWT(t)), helpers.NewDiscardLogger(), ServiceOptions{})

	_, _, err := svc.Login(context.Background(), "nobody@x.io", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	hasher.AssertExpectations(t)
}

func TestUploadAvatar_KeepsForeignObject(t *testing.T) {
	store := new(MockObjectStore)
	f := newFixture(t, ServiceOptions{Avatars: store})
	ctx := context.Background()
	foreign := "avatars/victim-id/their.png"
	u, _, err := f.svc.Register(ctx, RegisterInput{
		Name:     "Mallory",
		Email:    "m@x.io",
		Password: "hunter22",
		Avatar:   &entity.Avatar{PublicID: foreign, URL: "https://cdn/their.png"},
	})
	require.NoError(t, err)

	store.On("Put", mock.Anything, mock.Anything, "image/png", mock.Anything).Return("https://cdn/mine.png", nil).Once()
	_, err = f.svc.UploadAvatar(ctx, u.ID, strings.NewReader("img"), "mine.png", "image/png")
	require.NoError(t, err)
	store.AssertNotCalled(t, "Delete", mock.Anything, foreign)

	admin := f.register(t, "Admin", "admin@x.io", "hunter22")
	other, _, err := f.svc.Register(ctx, RegisterInput{
		Name:     "Eve",
		Email:    "e@x.io",
		Password: "hunter22",
		Avatar:   &entity.Avatar{PublicID: foreign, URL: "https://cdn/their.png"},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteUser(ctx, admin.ID, other.ID))
	store.AssertNotCalled(t, "Delete", mock.Anything, foreign)
}

func TestOwnsAvatarObject(t *testing.T) {
	assert.True(t, ownsAvatarObject("u1", "avatars/u1/a.png"))
	assert.False(t, ownsAvatarObject("u1", "avatars/u10/a.png"))
	assert.False(t, ownsAvatarObject("u1", "avatars/u1/../u2/a.png"))
	assert.False(t, ownsAvatarObject("", "avatars//a.png"))
}

func TestPageWindow(t *testing.T) {
	assert.Equal(t, repository.ListFilter{Limit: 20, Offset: 0}, PageWindow(0, -1))
	assert.Equal(t, repository.ListFilter{Limit: 20, Offset: 5}, PageWindow(500, 5))
	assert.Equal(t, repository.ListFilter{Limit: 7, Offset: 3}, PageWindow(7, 3))
}
