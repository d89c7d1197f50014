package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/validation"
)

// TaskRepository defines the persistence operations on tasks. Every call is
// scoped by owner; a task of another owner behaves as missing.
type TaskRepository interface {
	ListTasks(ctx context.Context, owner string) ([]models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (*models.Task, error)
	// UpdateTask loads the task, runs apply on it and stores the result
	// atomically. apply's error aborts the update.
	UpdateTask(ctx context.Context, owner, id string, apply func(*models.Task) error) (*models.Task, error)
	DeleteTask(ctx context.Context, owner, id string) error
}

// TodoService implements the task operations and their ownership rules.
// Ownership always comes from the caller's session identity.
type TodoService struct {
	repo  TaskRepository
	now   func() time.Time
	newID func() string
}

// NewTodoService constructs a TodoService backed by repo.
func NewTodoService(repo TaskRepository) *TodoService {
	return &TodoService{repo: repo, now: time.Now, newID: uuid.NewString}
}

// List returns the tasks of owner, most recent first. Only the caller's own
// list may be read; anything else yields models.ErrForbidden.
func (s *TodoService) List(ctx context.Context, caller, owner string) ([]models.Task, error) {
	if strings.ToLower(strings.TrimSpace(owner)) != caller {
		return nil, models.ErrForbidden
	}
	tasks, err := s.repo.ListTasks(ctx, caller)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// Create stores a new task owned by caller. Absent fields take their
// defaults: not completed, medium priority, zero progress, dated now.
func (s *TodoService) Create(ctx context.Context, caller string, patch models.TaskPatch) (*models.Task, error) {
	if patch.Title == nil {
		return nil, &validation.Error{Field: "title", Reason: "Title is required"}
	}

	t := models.Task{
		ID:         s.newID(),
		OwnerEmail: caller,
		Priority:   models.PriorityMedium,
		Date:       s.now().UTC().Truncate(time.Microsecond),
	}
	patch.Apply(&t)
	if err := validation.CheckTask(t); err != nil {
		return nil, err
	}
	return s.repo.CreateTask(ctx, t)
}

// Update merges the supplied fields of patch into the caller's task id.
// Missing and foreign tasks both yield models.ErrNotFound.
func (s *TodoService) Update(ctx context.Context, caller, id string, patch models.TaskPatch) (*models.Task, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	return s.repo.UpdateTask(ctx, caller, id, func(t *models.Task) error {
		patch.Apply(t)
		return validation.CheckTask(*t)
	})
}

// Remove deletes the caller's task id.
func (s *TodoService) Remove(ctx context.Context, caller, id string) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	return s.repo.DeleteTask(ctx, caller, id)
}

// validID reports whether id can name a stored task at all.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
