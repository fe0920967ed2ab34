package helpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

func TestNewJWTManager_Configuration(t *testing.T) {
	_, err := NewJWTManager("", time.Hour)
	var ce *apperror.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "JWT_SECRET_KEY", ce.Key)

	_, err = NewJWTManager("k", 0)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "JWT_EXPIRES", ce.Key)
}

func TestJWTManager_GenerateParse(t *testing.T) {
	m, err := NewJWTManager("k", 7*24*time.Hour)
	require.NoError(t, err)

	before := time.Now()
	tok, exp, err := m.Generate("u1")
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(7*24*time.Hour), exp, 2*time.Second)

	sub, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)
}

func TestJWTManager_OnlyStandardClaims(t *testing.T) {
	m, err := NewJWTManager("k", time.Hour)
	require.NoError(t, err)
	tok, _, err := m.Generate("u1")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	assert.Len(t, claims, 3)
	assert.Contains(t, claims, "sub")
	assert.Contains(t, claims, "iat")
	assert.Contains(t, claims, "exp")
}

func TestJWTManager_RejectsWrongKeyAndExpired(t *testing.T) {
	m, err := NewJWTManager("k", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTManager("other", time.Hour)
	require.NoError(t, err)

	tok, _, err := other.Generate("u1")
	require.NoError(t, err)
	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, apperror.ErrAuthentication)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	s, err := expired.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = m.Parse(s)
	assert.ErrorIs(t, err, apperror.ErrAuthentication)
}

func TestJWTManager_RejectsTokenWithoutExpiry(t *testing.T) {
	m, err := NewJWTManager("k", time.Hour)
	require.NoError(t, err)
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = m.Parse(s)
	assert.ErrorIs(t, err, apperror.ErrAuthentication)
}
