package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// SessionCookie writes the HttpOnly session cookie for one domain.
type SessionCookie struct {
	Domain string
	Secure bool
}

func NewSessionCookie(domain string, secure bool) *SessionCookie {
	return &SessionCookie{Domain: domain, Secure: secure}
}

// Set expires the cookie together with the token.
func (s *SessionCookie) Set(c *gin.Context, token string, exp time.Time) {
	s.write(c, token, maxAgeUntil(exp))
}

func (s *SessionCookie) Clear(c *gin.Context) {
	s.write(c, "", -1)
}

func (s *SessionCookie) write(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookieName, value, maxAge, "/", s.Domain, s.Secure, true)
}

func maxAgeUntil(exp time.Time) int {
	if sec := int(time.Until(exp).Seconds()); sec > 0 {
		return sec
	}
	return 0
}
