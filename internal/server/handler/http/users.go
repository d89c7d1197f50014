package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/todolist/internal/middleware"
	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/session"
)

// UserService defines the account operations required by the UserHandler.
type UserService interface {
	UpdateProfile(ctx context.Context, caller string, upd models.ProfileUpdate) (session.Token, error)
	DeleteAccount(ctx context.Context, caller string) error
}

// UserHandler handles HTTP requests on the caller's own account.
type UserHandler struct {
	UserService UserService
	Sessions    CookieWriter
	Log         *zap.Logger
}

// ProfileRequest represents the JSON payload of PATCH /users/me.
type ProfileRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewEmail        string `json:"newEmail"`
	NewPassword     string `json:"newPassword"`
}

var profileDetails = map[error]string{
	models.ErrInvalidCredentials: "Current password is incorrect",
	models.ErrNotFound:           "User not found",
	models.ErrConflict:           "Email already in use",
}

// UpdateMe handles PATCH /users/me. The session cookie is reissued for
// the resulting email.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserEmailFromContext(r.Context())

	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	tok, err := h.UserService.UpdateProfile(r.Context(), caller, models.ProfileUpdate{
		CurrentPassword: req.CurrentPassword,
		NewEmail:        req.NewEmail,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, h.Log, err, profileDetails)
		return
	}

	h.Sessions.SetCookie(w, tok)
	writeJSON(w, http.StatusOK, map[string]string{"email": tok.Email})
}

// DeleteMe handles DELETE /users/me, removing the account and its tasks
// and clearing the session cookie.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserEmailFromContext(r.Context())

	if err := h.UserService.DeleteAccount(r.Context(), caller); err != nil {
		writeServiceError(w, h.Log, err, profileDetails)
		return
	}

	h.Sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
