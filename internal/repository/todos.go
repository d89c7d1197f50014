package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/todolist/internal/db"
	"github.com/atinyakov/todolist/internal/models"
)

const taskColumns = `id, user_email, title, progress, priority, completed, date`

// PostgresTaskRepository implements the task store against a PostgreSQL database.
// Every statement is scoped by the owner email, so a task owned by someone
// else is indistinguishable from a missing one.
type PostgresTaskRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresTaskRepository creates a new PostgresTaskRepository using the provided *sql.DB.
func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	if err := row.Scan(&t.ID, &t.OwnerEmail, &t.Title, &t.Progress, &t.Priority, &t.Completed, &t.Date); err != nil {
		return nil, err
	}
	t.Date = t.Date.UTC()
	return &t, nil
}

// ListTasks fetches all tasks of owner, most recent first.
func (r *PostgresTaskRepository) ListTasks(ctx context.Context, owner string) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM todos WHERE user_email = $1 ORDER BY date DESC, id
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("ListTasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTasks: %w", err)
	}
	return tasks, nil
}

// CreateTask inserts t and returns the stored row. An owner that no longer
// exists yields models.ErrNotFound.
func (r *PostgresTaskRepository) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO todos (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+taskColumns,
		t.ID, t.OwnerEmail, t.Title, t.Progress, t.Priority, t.Completed, t.Date,
	)
	created, err := scanTask(row)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("CreateTask: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("CreateTask: %w", err)
	}
	return created, nil
}

// UpdateTask locks the task id of owner, lets apply modify it and stores
// the result, all in one transaction. A missing or foreign task yields
// models.ErrNotFound; an error from apply aborts without writing.
func (r *PostgresTaskRepository) UpdateTask(
	ctx context.Context,
	owner, id string,
	apply func(*models.Task) error,
) (*models.Task, error) {
	var updated *models.Task
	err := db.WithTx(ctx, r.DB, func(ctx context.Context, tx db.DBTX) error {
		current, err := scanTask(tx.QueryRowContext(ctx, `
			SELECT `+taskColumns+` FROM todos WHERE id = $1 AND user_email = $2 FOR UPDATE
		`, id, owner))
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}

		if err := apply(current); err != nil {
			return err
		}

		updated, err = scanTask(tx.QueryRowContext(ctx, `
			UPDATE todos
			SET title = $1, progress = $2, priority = $3, completed = $4, date = $5
			WHERE id = $6 AND user_email = $7
			RETURNING `+taskColumns,
			current.Title, current.Progress, current.Priority, current.Completed, current.Date,
			id, owner,
		))
		if err != nil {
			return fmt.Errorf("store task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask removes the task id of owner.
func (r *PostgresTaskRepository) DeleteTask(ctx context.Context, owner, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_email = $2`, id, owner)
	return expectRows(res, err, "DeleteTask")
}
