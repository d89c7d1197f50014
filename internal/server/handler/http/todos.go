package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/todolist/internal/middleware"
	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/validation"
)

// TodoService defines the task operations required by the TodoHandler.
// caller is always the authenticated email.
type TodoService interface {
	List(ctx context.Context, caller, owner string) ([]models.Task, error)
	Create(ctx context.Context, caller string, patch models.TaskPatch) (*models.Task, error)
	Update(ctx context.Context, caller, id string, patch models.TaskPatch) (*models.Task, error)
	Remove(ctx context.Context, caller, id string) error
}

// TodoHandler handles HTTP requests on the caller's tasks.
type TodoHandler struct {
	TodoService TodoService
	Log         *zap.Logger
}

// taskRequest is the body of create and update. Fields are decoded loosely
// and validated by validation.ParseTask. Identity fields a client may echo
// back from a stored row are accepted and ignored.
type taskRequest struct {
	Title     any `json:"title"`
	Progress  any `json:"progress"`
	Priority  any `json:"priority"`
	Completed any `json:"completed"`
	Date      any `json:"date"`

	ID         any `json:"id"`
	OwnerEmail any `json:"ownerEmail"`
	UserEmail  any `json:"user_email"`
}

func (h *TodoHandler) decodePatch(w http.ResponseWriter, r *http.Request) (models.TaskPatch, error) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return models.TaskPatch{}, err
	}
	return validation.ParseTask(validation.TaskInput{
		Title:     req.Title,
		Progress:  req.Progress,
		Priority:  req.Priority,
		Completed: req.Completed,
		Date:      req.Date,
	})
}

// List handles GET /todos/{ownerEmail}. The owner may arrive
// percent-encoded, as browsers send it.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserEmailFromContext(r.Context())

	owner, err := url.PathUnescape(chi.URLParam(r, "ownerEmail"))
	if err != nil {
		writeServiceError(w, h.Log, models.ErrForbidden, nil)
		return
	}
	tasks, err := h.TodoService.List(r.Context(), caller, owner)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create handles POST /todos. The owner is always the caller.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserEmailFromContext(r.Context())

	patch, err := h.decodePatch(w, r)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	task, err := h.TodoService.Create(r.Context(), caller, patch)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PUT /todos/{id}, merging only the supplied fields.
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserEmailFromContext(r.Context())

	patch, err := h.decodePatch(w, r)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}

	task, err := h.TodoService.Update(r.Context(), caller, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /todos/{id}.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserEmailFromContext(r.Context())

	if err := h.TodoService.Remove(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
