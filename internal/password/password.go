// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxInput is the number of password bytes bcrypt takes into account.
const maxInput = 72

// Bcrypt hashes passwords with a per-hash random salt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher using the given bcrypt cost. A cost outside
// bcrypt's accepted range falls back to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash returns the encoded salted hash of pw.
func (b *Bcrypt) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prepare(pw), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether pw matches the encoded hash. A mismatch is not an
// error; a malformed hash is.
func (b *Bcrypt) Verify(pw, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), prepare(pw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}

// prepare returns the bytes fed to bcrypt. Passwords longer than bcrypt's
// input limit are reduced to their encoded SHA-256 digest first, so every
// byte of them counts.
func prepare(pw string) []byte {
	if len(pw) <= maxInput {
		return []byte(pw)
	}
	sum := sha256.Sum256([]byte(pw))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
