// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type ctxKey string

const userKey ctxKey = "user"

// SessionVerifier resolves the session carried by a request to the
// authenticated email.
type SessionVerifier interface {
	FromRequest(r *http.Request) (string, error)
}

// RequireSession is a middleware that rejects requests without a valid
// session cookie.
//
// The check is stateless: only the token signature and expiry are
// verified, no user lookup is made. On success the email asserted by the
// token is stored in the request context for downstream handlers.
func RequireSession(v SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := v.FromRequest(r)
			if err != nil || email == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Unauthorized"})
				return
			}
			ctx := context.WithValue(r.Context(), userKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserEmailFromContext extracts the authenticated email from the request
// context. Returns an empty string if not found.
func UserEmailFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUserEmail returns a copy of ctx carrying email as the authenticated
// identity.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey, email)
}
