package models

import "errors"

var (
	// ErrNotFound is returned when a record is missing or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key (the user email) is already taken.
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is returned when an email/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a session token is missing, malformed or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller asks for another user's data.
	ErrForbidden = errors.New("forbidden")
)
