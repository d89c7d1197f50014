// Package session mints and verifies the signed, self-contained session
// tokens carried in the session cookie. Nothing is persisted server-side:
// a token stays valid until it expires, logout only clears the cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atinyakov/todolist/internal/models"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "token"
	// legacyCookieName was used by older clients and is cleared on logout.
	legacyCookieName = "AuthToken"

	// DefaultTTL is the validity window of a freshly issued token.
	DefaultTTL = time.Hour
)

// Claims is the signed payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Token is an issued session token.
type Token struct {
	Value     string
	Email     string
	ExpiresAt time.Time
}

// Manager issues and verifies HS256 session tokens and writes the
// matching cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
	parser *jwt.Parser
}

// NewManager returns a Manager signing with secret. A non-positive ttl
// means DefaultTTL. secure marks cookies Secure and SameSite=None, which is
// what a cross-origin browser client needs in production.
func NewManager(secret []byte, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{secret: secret, ttl: ttl, secure: secure, now: time.Now}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

// TTL returns the validity window of issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue mints a token asserting email, valid for the configured TTL.
func (m *Manager) Issue(email string) (Token, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: value, Email: email, ExpiresAt: exp}, nil
}

// Verify checks the signature and expiry of value and returns the email it
// asserts. Every failure is reported as models.ErrUnauthorized.
func (m *Manager) Verify(value string) (string, error) {
	if value == "" {
		return "", models.ErrUnauthorized
	}
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	if claims.Email == "" {
		return "", models.ErrUnauthorized
	}
	return claims.Email, nil
}

// FromRequest reads and verifies the session cookie of r.
func (m *Manager) FromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", models.ErrUnauthorized
		}
		return "", fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	return m.Verify(c.Value)
}

// SetCookie writes tok as the http-only session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, tok Token) {
	c := m.cookie(CookieName)
	c.Value = tok.Value
	c.Expires = tok.ExpiresAt
	c.MaxAge = int(tok.ExpiresAt.Sub(m.now()).Seconds())
	http.SetCookie(w, c)
}

// ClearCookie expires the session cookie, and the legacy one, on the client.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	for _, name := range []string{CookieName, legacyCookieName} {
		c := m.cookie(name)
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (m *Manager) cookie(name string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if m.secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
