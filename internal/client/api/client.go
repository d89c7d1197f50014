// Package api is a Go client for the to-do HTTP API. The session cookie is
// kept in a cookie jar, the same way a browser would hold it.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"github.com/atinyakov/todolist/internal/models"
)

const sessionCookie = "token"

// Error is a non-2xx API response.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Detail, e.Status)
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// TaskInput carries the task fields to send. Nil fields are omitted, which
// on update leaves the stored value unchanged.
type TaskInput struct {
	Title     *string    `json:"title,omitempty"`
	Progress  *int       `json:"progress,omitempty"`
	Priority  *int       `json:"priority,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

// ProfileUpdate is the body of UpdateProfile.
type ProfileUpdate struct {
	CurrentPassword string `json:"currentPassword"`
	NewEmail        string `json:"newEmail,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

// Client calls the API at a base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a Client for baseURL. caFile, when set, names a PEM bundle
// that replaces the system roots, e.g. the self-signed certificate written
// by tools/certgen.
func New(baseURL, caFile string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12}
	}

	return &Client{
		base: base,
		http: &http.Client{Transport: transport, Jar: jar, Timeout: 10 * time.Second},
	}, nil
}

// SessionToken returns the session cookie value currently held, if any.
func (c *Client) SessionToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == sessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken restores a previously saved session cookie.
func (c *Client) SetSessionToken(value string) {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: sessionCookie, Value: value, Path: "/"}})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Detail = payload.Detail
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Signup registers an account and starts a session for it.
func (c *Client) Signup(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/signup", map[string]string{"email": email, "password": password}, nil)
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, nil)
}

// Me returns the email of the current session.
func (c *Client) Me(ctx context.Context) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// Logout drops the session cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// List returns the tasks of owner.
func (c *Client) List(ctx context.Context, owner string) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/todos/"+url.PathEscape(owner), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create adds a task.
func (c *Client) Create(ctx context.Context, in TaskInput) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/todos", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update changes the supplied fields of task id.
func (c *Client) Update(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPut, "/todos/"+url.PathEscape(id), in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes task id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil)
}

// UpdateProfile changes the account email and/or password and returns the
// resulting email. The session cookie is replaced by the server.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodPatch, "/users/me", upd, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// DeleteAccount removes the account and all of its tasks.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/users/me", nil, nil)
}
