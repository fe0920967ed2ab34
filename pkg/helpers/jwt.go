package helpers

import (
	"errors"
	"expvar"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

var issuedCounter = expvar.NewInt("session_tokens_issued")

// JWTManager signs and verifies session tokens. Tokens carry only the subject
// (user id) and the standard iat/exp claims.
type JWTManager struct {
	secret    []byte
	expiresIn time.Duration
}

// NewJWTManager fails with a ConfigurationError when the signing key or the
// validity window is missing.
func NewJWTManager(secret string, expiresIn time.Duration) (*JWTManager, error) {
	if secret == "" {
		return nil, apperror.Configuration("JWT_SECRET_KEY", "is required")
	}
	if expiresIn <= 0 {
		return nil, apperror.Configuration("JWT_EXPIRES", "must be a positive duration")
	}
	return &JWTManager{secret: []byte(secret), expiresIn: expiresIn}, nil
}

func (m *JWTManager) ExpiresIn() time.Duration { return m.expiresIn }

// Generate issues a token for subject and returns its expiry.
func (m *JWTManager) Generate(subject string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.expiresIn)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, apperror.Internal("sign session token", err)
	}
	issuedCounter.Add(1)
	return s, exp, nil
}

// Parse verifies tokenStr and returns its subject. Every failure, expiry
// included, is reported as apperror.ErrAuthentication.
func (m *JWTManager) Parse(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperror.ErrAuthentication, err)
	}
	if !tkn.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid token", apperror.ErrAuthentication)
	}
	return claims.Subject, nil
}
