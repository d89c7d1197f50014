// Package repository provides persistence implementations for users and
// their tasks, on PostgreSQL and in memory.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/atinyakov/todolist/internal/db"
	"github.com/atinyakov/todolist/internal/models"
)

// PostgresUserRepository implements the credential store using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// CreateUser inserts a new user. The primary key on email makes the insert
// itself the uniqueness check: a duplicate yields models.ErrConflict.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, email, hash string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (email, hashed_password) VALUES ($1, $2)`,
		email, hash,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user: %w", models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user with the given normalized email, or
// models.ErrNotFound.
func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT email, hashed_password FROM users WHERE email = $1`,
		email,
	).Scan(&u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateCredentials changes the email and/or password hash of the user
// currently identified by email. An email change moves the user's tasks
// along in the same transaction. Empty newEmail or newHash leave the
// respective value unchanged.
func (r *PostgresUserRepository) UpdateCredentials(ctx context.Context, email, newEmail, newHash string) error {
	return db.WithTx(ctx, r.DB, func(ctx context.Context, tx db.DBTX) error {
		if newEmail != "" && newEmail != email {
			res, err := tx.ExecContext(ctx, `UPDATE users SET email = $1 WHERE email = $2`, newEmail, email)
			if isUniqueViolation(err) {
				return fmt.Errorf("change email: %w", models.ErrConflict)
			}
			if err := expectRows(res, err, "change email"); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE todos SET user_email = $1 WHERE user_email = $2`, newEmail, email); err != nil {
				return fmt.Errorf("move todos: %w", err)
			}
			email = newEmail
		}

		if newHash != "" {
			res, err := tx.ExecContext(ctx, `UPDATE users SET hashed_password = $1 WHERE email = $2`, newHash, email)
			if err := expectRows(res, err, "change password"); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteUser removes the user and all of their tasks in one transaction
// and returns the number of users removed.
func (r *PostgresUserRepository) DeleteUser(ctx context.Context, email string) (int64, error) {
	var removed int64
	err := db.WithTx(ctx, r.DB, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE user_email = $1`, email); err != nil {
			return fmt.Errorf("delete todos: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email)
		if err := expectRows(res, err, "delete user"); err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgerrcode.ForeignKeyViolation
}

// expectRows wraps err, or reports models.ErrNotFound when no row was affected.
func expectRows(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
