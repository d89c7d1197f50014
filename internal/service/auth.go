// Package service provides the authentication, profile and task business
// logic, delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/session"
	"github.com/atinyakov/todolist/internal/validation"
)

// UserRepository defines the persistence operations on user credentials.
type UserRepository interface {
	// CreateUser inserts a user. A taken email yields models.ErrConflict.
	CreateUser(ctx context.Context, email, hash string) error
	// GetUserByEmail returns the user or models.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateCredentials atomically changes the email (moving owned tasks) and/or
	// password hash. Empty values leave the field unchanged.
	UpdateCredentials(ctx context.Context, email, newEmail, newHash string) error
	// DeleteUser removes the user and all owned tasks.
	DeleteUser(ctx context.Context, email string) (int64, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	// Verify reports whether pw matches hash. A mismatch is not an error.
	Verify(pw, hash string) (bool, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(email string) (session.Token, error)
}

// AuthService registers users and authenticates them into sessions.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer

	// dummyHash is compared against when the email is unknown, so both
	// failure paths cost one hash verification.
	dummyHash string
}

// NewAuthService constructs an AuthService.
func NewAuthService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer) (*AuthService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{users: users, hasher: hasher, tokens: tokens, dummyHash: dummy}, nil
}

// Register validates the credentials, stores a new user and issues a session
// token for it. A taken email yields models.ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password string) (session.Token, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return session.Token{}, err
	}
	if err := validation.CheckPassword(password); err != nil {
		return session.Token{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return session.Token{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.CreateUser(ctx, email, hash); err != nil {
		return session.Token{}, err
	}
	return s.tokens.Issue(email)
}

// Authenticate checks email and password and issues a session token.
// Unknown emails and wrong passwords both yield models.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (session.Token, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return session.Token{}, err
	}
	if password == "" {
		return session.Token{}, &validation.Error{Field: "password", Reason: "Password is required"}
	}

	if err := s.checkPassword(ctx, email, password); err != nil {
		return session.Token{}, err
	}
	return s.tokens.Issue(email)
}

// checkPassword verifies password for email, returning
// models.ErrInvalidCredentials on any mismatch.
func (s *AuthService) checkPassword(ctx context.Context, email, password string) error {
	hash := s.dummyHash
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		hash = user.PasswordHash
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	ok, err := s.hasher.Verify(password, hash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok || user == nil {
		return models.ErrInvalidCredentials
	}
	return nil
}
