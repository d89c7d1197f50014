// Package http provides the HTTP routing and JSON handlers of the to-do
// API: authentication, the caller's profile and their tasks.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/todolist/internal/middleware"
	"github.com/atinyakov/todolist/internal/session"
)

// AuthService defines the authentication operations required by the
// HTTP handlers.
type AuthService interface {
	// Register creates a user and returns a session token for it.
	Register(ctx context.Context, email, password string) (session.Token, error)
	// Authenticate checks credentials and returns a session token.
	Authenticate(ctx context.Context, email, password string) (session.Token, error)
}

// CookieWriter sets and clears the session cookie.
type CookieWriter interface {
	SetCookie(w http.ResponseWriter, tok session.Token)
	ClearCookie(w http.ResponseWriter)
}

// AuthHandler handles HTTP requests for signup, login, logout and the
// current identity.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Sessions writes the session cookie.
	Sessions CookieWriter
	// Log receives unexpected failures.
	Log *zap.Logger
}

// CredentialsRequest represents the JSON payload of signup and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /signup. On success the session cookie is set and
// the response has no content.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	tok, err := h.AuthService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	h.Sessions.SetCookie(w, tok)
	w.WriteHeader(http.StatusNoContent)
}

// Login handles POST /login. A wrong password and an unknown email get
// the same 401 response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	tok, err := h.AuthService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	h.Sessions.SetCookie(w, tok)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me and returns the email of the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"email": middleware.UserEmailFromContext(r.Context()),
	})
}

// Logout handles POST /logout. It only clears the cookie; the token itself
// stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
