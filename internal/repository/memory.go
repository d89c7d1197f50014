package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/atinyakov/todolist/internal/models"
)

// MemoryStore keeps users and tasks in process memory. It satisfies the same
// contracts as the PostgreSQL repositories and is used when no database is
// configured and in tests. All data is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]string // email -> password hash
	tasks map[string]models.Task
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]string),
		tasks: make(map[string]models.Task),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[email]; ok {
		return models.ErrConflict
	}
	m.users[email] = hash
	return nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.User{Email: email, PasswordHash: hash}, nil
}

func (m *MemoryStore) UpdateCredentials(_ context.Context, email, newEmail, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.users[email]
	if !ok {
		return models.ErrNotFound
	}
	if newEmail != "" && newEmail != email {
		if _, taken := m.users[newEmail]; taken {
			return models.ErrConflict
		}
		delete(m.users, email)
		for id, t := range m.tasks {
			if t.OwnerEmail == email {
				t.OwnerEmail = newEmail
				m.tasks[id] = t
			}
		}
		email = newEmail
	}
	if newHash != "" {
		hash = newHash
	}
	m.users[email] = hash
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[email]; !ok {
		return 0, models.ErrNotFound
	}
	delete(m.users, email)
	for id, t := range m.tasks {
		if t.OwnerEmail == email {
			delete(m.tasks, id)
		}
	}
	return 1, nil
}

// ListTasks returns copies of owner's tasks, most recent first.
func (m *MemoryStore) ListTasks(_ context.Context, owner string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]models.Task, 0)
	for _, t := range m.tasks {
		if t.OwnerEmail == owner {
			tasks = append(tasks, t)
		}
	}
	slices.SortFunc(tasks, func(a, b models.Task) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

func (m *MemoryStore) CreateTask(_ context.Context, t models.Task) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[t.OwnerEmail]; !ok {
		return nil, models.ErrNotFound
	}
	if _, ok := m.tasks[t.ID]; ok {
		return nil, models.ErrConflict
	}
	m.tasks[t.ID] = t
	return &t, nil
}

// UpdateTask holds the store lock while apply runs, so concurrent updates
// of the same task are serialized.
func (m *MemoryStore) UpdateTask(
	_ context.Context,
	owner, id string,
	apply func(*models.Task) error,
) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.OwnerEmail != owner {
		return nil, models.ErrNotFound
	}
	if err := apply(&t); err != nil {
		return nil, err
	}
	t.ID, t.OwnerEmail = id, owner
	m.tasks[id] = t
	return &t, nil
}

func (m *MemoryStore) DeleteTask(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.OwnerEmail != owner {
		return models.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}
