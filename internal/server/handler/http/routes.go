package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/atinyakov/todolist/internal/middleware"
)

// RouterOptions configures the cross-cutting behaviour of the router.
type RouterOptions struct {
	// ClientOrigin is the browser origin allowed to call the API with
	// credentials. Empty disables CORS.
	ClientOrigin string
	// AuthRateLimit requests per AuthRateWindow and client IP are allowed
	// on /signup and /login.
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// NewRouter constructs and returns an HTTP handler that serves the to-do
// API.
//
// Routes:
//
//	GET    /health               → Health
//	POST   /signup               → authHandler.Signup (rate limited)
//	POST   /login                → authHandler.Login (rate limited)
//	POST   /logout               → authHandler.Logout
//	GET    /me                   → authHandler.Me
//	GET    /todos/{ownerEmail}   → todoHandler.List
//	POST   /todos                → todoHandler.Create
//	PUT    /todos/{id}           → todoHandler.Update
//	DELETE /todos/{id}           → todoHandler.Delete
//	PATCH  /users/me             → userHandler.UpdateMe
//	DELETE /users/me             → userHandler.DeleteMe
//
// Everything except health, signup, login and logout requires a valid
// session cookie.
func NewRouter(
	authHandler *AuthHandler,
	todoHandler *TodoHandler,
	userHandler *UserHandler,
	sessions middleware.SessionVerifier,
	opts RouterOptions,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Use(chiMiddleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(chiMiddleware.SetHeader("X-Frame-Options", "DENY"))
	r.Use(chiMiddleware.SetHeader("Referrer-Policy", "no-referrer"))

	if opts.ClientOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{opts.ClientOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Public endpoints
	r.Get("/health", Health)
	r.Post("/logout", authHandler.Logout)
	r.Group(func(r chi.Router) {
		r.Use(authRateLimit(opts))
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
	})

	// Protected group: requires a valid session cookie
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(sessions))

		r.Get("/me", authHandler.Me)

		r.Get("/todos/{ownerEmail}", todoHandler.List)
		r.Post("/todos", todoHandler.Create)
		r.Put("/todos/{id}", todoHandler.Update)
		r.Delete("/todos/{id}", todoHandler.Delete)

		r.Patch("/users/me", userHandler.UpdateMe)
		r.Delete("/users/me", userHandler.DeleteMe)
	})

	return r
}

// authRateLimit is a per-IP fixed-window limiter for the credential
// endpoints.
func authRateLimit(opts RouterOptions) func(http.Handler) http.Handler {
	limit, window := opts.AuthRateLimit, opts.AuthRateWindow
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		}),
	)
}
