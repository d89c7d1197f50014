// Package storage keeps client state between runs of the CLI and reads
// user input for it.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const sessionFile = "session.json"

// Session is the saved login of the CLI.
type Session struct {
	BaseURL string `json:"baseURL"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

// LocalStorage persists a Session as JSON at Path.
type LocalStorage struct {
	Path string
	mu   sync.Mutex
}

// DefaultPath returns the session file under the user config directory,
// falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return sessionFile
	}
	return filepath.Join(dir, "todolist", sessionFile)
}

// Load reads the saved session. A missing file yields an empty Session.
func (ls *LocalStorage) Load() (Session, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var s Session
	f, err := os.Open(ls.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Session{}, fmt.Errorf("decode %s: %w", ls.Path, err)
	}
	return s, nil
}

// Save writes s, readable by the owner only since it holds a live token.
func (ls *LocalStorage) Save(s Session) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if dir := filepath.Dir(ls.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(ls.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Clear removes the saved session.
func (ls *LocalStorage) Clear() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := os.Remove(ls.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
