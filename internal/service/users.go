package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/session"
	"github.com/atinyakov/todolist/internal/validation"
)

// UserService manages the caller's own account.
type UserService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewUserService constructs a UserService.
func NewUserService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer) *UserService {
	return &UserService{users: users, hasher: hasher, tokens: tokens}
}

// UpdateProfile changes the caller's email and/or password after checking
// the current password, and returns a session token for the resulting
// email. A wrong current password yields models.ErrInvalidCredentials, a
// taken email models.ErrConflict and a vanished account models.ErrNotFound.
func (s *UserService) UpdateProfile(ctx context.Context, caller string, upd models.ProfileUpdate) (session.Token, error) {
	if upd.CurrentPassword == "" {
		return session.Token{}, &validation.Error{Field: "currentPassword", Reason: "Current password is required"}
	}
	if upd.NewEmail == "" && upd.NewPassword == "" {
		return session.Token{}, &validation.Error{Reason: "Nothing to update"}
	}

	var newEmail, newHash string
	if upd.NewEmail != "" {
		email, err := validation.NormalizeEmail(upd.NewEmail)
		if err != nil {
			return session.Token{}, err
		}
		if email != caller {
			newEmail = email
		}
	}
	if upd.NewPassword != "" {
		if err := validation.CheckPassword(upd.NewPassword); err != nil {
			return session.Token{}, err
		}
	}

	user, err := s.users.GetUserByEmail(ctx, caller)
	if err != nil {
		return session.Token{}, err
	}
	ok, err := s.hasher.Verify(upd.CurrentPassword, user.PasswordHash)
	if err != nil {
		return session.Token{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return session.Token{}, models.ErrInvalidCredentials
	}

	if upd.NewPassword != "" {
		if newHash, err = s.hasher.Hash(upd.NewPassword); err != nil {
			return session.Token{}, fmt.Errorf("hash password: %w", err)
		}
	}

	if newEmail != "" || newHash != "" {
		if err := s.users.UpdateCredentials(ctx, caller, newEmail, newHash); err != nil {
			return session.Token{}, err
		}
	}

	email := caller
	if newEmail != "" {
		email = newEmail
	}
	return s.tokens.Issue(email)
}

// DeleteAccount removes the caller and all of their tasks.
func (s *UserService) DeleteAccount(ctx context.Context, caller string) error {
	_, err := s.users.DeleteUser(ctx, caller)
	return err
}
