package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/password"
	"github.com/atinyakov/todolist/internal/repository"
	handler "github.com/atinyakov/todolist/internal/server/handler/http"
	"github.com/atinyakov/todolist/internal/service"
	"github.com/atinyakov/todolist/internal/session"
)

func newTestServer(t *testing.T, opts handler.RouterOptions) *httptest.Server {
	t.Helper()

	store := repository.NewMemoryStore()
	hasher := password.NewBcrypt(bcrypt.MinCost)
	sessions := session.NewManager([]byte("test-secret"), time.Hour, false)
	log := zap.NewNop()

	authSvc, err := service.NewAuthService(store, hasher, sessions)
	require.NoError(t, err)

	router := handler.NewRouter(
		&handler.AuthHandler{AuthService: authSvc, Sessions: sessions, Log: log},
		&handler.TodoHandler{TodoService: service.NewTodoService(store), Log: log},
		&handler.UserHandler{UserService: service.NewUserService(store, hasher, sessions), Sessions: sessions, Log: log},
		sessions,
		opts,
		log,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// browser is a cookie-keeping client bound to one test server.
type browser struct {
	t   *testing.T
	srv *httptest.Server
	c   *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, srv: srv, c: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path string, body any) (*http.Response, []byte) {
	b.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, b.srv.URL+path, rd)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.c.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(b.t, err)
	return resp, buf.Bytes()
}

func (b *browser) signup(email, pw string) {
	b.t.Helper()
	resp, body := b.do("POST", "/signup", map[string]string{"email": email, "password": pw})
	require.Equal(b.t, http.StatusNoContent, resp.StatusCode, string(body))
}

func (b *browser) createTask(fields map[string]any) models.Task {
	b.t.Helper()
	resp, body := b.do("POST", "/todos", fields)
	require.Equal(b.t, http.StatusCreated, resp.StatusCode, string(body))
	var task models.Task
	require.NoError(b.t, json.Unmarshal(body, &task))
	return task
}

func (b *browser) list(owner string) (int, []models.Task) {
	b.t.Helper()
	resp, body := b.do("GET", "/todos/"+owner, nil)
	var tasks []models.Task
	if resp.StatusCode == http.StatusOK {
		require.NoError(b.t, json.Unmarshal(body, &tasks))
	}
	return resp.StatusCode, tasks
}

func TestRouter_Health(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))

	resp, body := b.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestRouter_SignupOncePerNormalizedEmail(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})
	b := newBrowser(t, srv)

	b.signup("Alice@Example.com", "secret1")

	resp, body := newBrowser(t, srv).do("POST", "/signup", map[string]string{"email": "  alice@EXAMPLE.com", "password": "other12"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "User already exists")
}

func TestRouter_LoginAndMe(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})
	newBrowser(t, srv).signup("Alice@Example.com", "secret1")

	b := newBrowser(t, srv)
	resp, _ := b.do("GET", "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = b.do("POST", "/login", map[string]string{"email": "ALICE@example.com", "password": "secret1"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var tokenCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie, "login must set the session cookie")
	assert.True(t, tokenCookie.HttpOnly)
	assert.Equal(t, "/", tokenCookie.Path)

	resp, body := b.do("GET", "/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"email":"alice@example.com"}`, string(body))

	resp, _ = b.do("POST", "/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = b.do("GET", "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_LoginFailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})
	newBrowser(t, srv).signup("alice@example.com", "secret1")

	b := newBrowser(t, srv)
	wrongResp, wrongBody := b.do("POST", "/login", map[string]string{"email": "alice@example.com", "password": "wrong12"})
	ghostResp, ghostBody := b.do("POST", "/login", map[string]string{"email": "ghost@example.com", "password": "wrong12"})

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, wrongResp.StatusCode, ghostResp.StatusCode)
	assert.Equal(t, string(wrongBody), string(ghostBody))
	assert.Empty(t, wrongResp.Cookies())
}

func TestRouter_TaskScenario(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("alice@example.com", "secret1")

	created := b.createTask(map[string]any{"title": "Buy milk", "progress": 10, "priority": 1})
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Completed)
	assert.Equal(t, "alice@example.com", created.OwnerEmail)
	assert.Equal(t, 10, created.Progress)
	assert.Equal(t, models.PriorityLow, created.Priority)

	resp, body := b.do("PUT", "/todos/"+created.ID, map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var same models.Task
	require.NoError(t, json.Unmarshal(body, &same))
	assert.Equal(t, created.ID, same.ID)
	assert.Equal(t, created.Title, same.Title)
	assert.True(t, created.Date.Equal(same.Date))

	resp, body = b.do("PUT", "/todos/"+created.ID, map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done models.Task
	require.NoError(t, json.Unmarshal(body, &done))
	assert.True(t, done.Completed)
	assert.Equal(t, created.Title, done.Title)
	assert.Equal(t, created.Progress, done.Progress)
	assert.Equal(t, created.Priority, done.Priority)
	assert.True(t, created.Date.Equal(done.Date))

	resp, _ = b.do("DELETE", "/todos/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	status, tasks := b.list("alice@example.com")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, tasks)
}

func TestRouter_ProgressRoundTrip(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("alice@example.com", "secret1")

	resp, _ := b.do("POST", "/todos", map[string]any{"title": "x", "progress": 150})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	task := b.createTask(map[string]any{"title": "x", "progress": 57})
	assert.Equal(t, 57, task.Progress)

	_, tasks := b.list("alice@example.com")
	require.Len(t, tasks, 1)
	assert.Equal(t, 57, tasks[0].Progress)
}

func TestRouter_TitleSanitized(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("alice@example.com", "secret1")

	task := b.createTask(map[string]any{"title": "  <b>Hi</b>   there  "})
	assert.Equal(t, "Hi there", task.Title)
}

func TestRouter_ListOrderedByDateDesc(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("alice@example.com", "secret1")

	b.createTask(map[string]any{"title": "old", "date": "2024-01-01T00:00:00Z"})
	b.createTask(map[string]any{"title": "new", "date": "2024-06-01T00:00:00Z"})
	b.createTask(map[string]any{"title": "mid", "date": "2024-03-01T00:00:00Z"})

	_, tasks := b.list("alice@example.com")
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})
}

func TestRouter_CrossUserIsolation(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})
	alice := newBrowser(t, srv)
	alice.signup("alice@example.com", "secret1")
	bob := newBrowser(t, srv)
	bob.signup("bob@example.com", "secret2")

	task := alice.createTask(map[string]any{"title": "private", "ownerEmail": "bob@example.com"})
	assert.Equal(t, "alice@example.com", task.OwnerEmail)

	status, _ := bob.list("alice@example.com")
	assert.Equal(t, http.StatusForbidden, status)

	resp, body := bob.do("PUT", "/todos/"+task.ID, map[string]any{"title": "pwned"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, string(body), "private")

	resp, _ = bob.do("DELETE", "/todos/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, tasks := alice.list("alice@example.com")
	require.Len(t, tasks, 1)
	assert.Equal(t, "private", tasks[0].Title)

	_, bobs := bob.list("bob@example.com")
	assert.Empty(t, bobs)
}

func TestRouter_AccountDeletionCascade(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})
	alice := newBrowser(t, srv)
	alice.signup("alice@example.com", "secret1")
	alice.createTask(map[string]any{"title": "one"})
	alice.createTask(map[string]any{"title": "two"})

	// Keep the pre-deletion token around.
	u, err := http.NewRequest("GET", srv.URL, nil)
	require.NoError(t, err)
	stale := alice.c.Jar.Cookies(u.URL)
	require.NotEmpty(t, stale)

	resp, _ := alice.do("DELETE", "/users/me", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	replay := newBrowser(t, srv)
	replay.c.Jar.SetCookies(u.URL, stale)

	status, tasks := replay.list("alice@example.com")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, tasks)

	resp, _ = replay.do("DELETE", "/users/me", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = replay.do("POST", "/todos", map[string]any{"title": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ProfileUpdate(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})
	newBrowser(t, srv).signup("taken@example.com", "secret9")
	b := newBrowser(t, srv)
	b.signup("alice@example.com", "secret1")
	b.createTask(map[string]any{"title": "carry me"})

	resp, body := b.do("PATCH", "/users/me", map[string]any{"currentPassword": "nope12", "newPassword": "secret2"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Current password is incorrect")

	resp, body = b.do("PATCH", "/users/me", map[string]any{"currentPassword": "secret1", "newEmail": "taken@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "Email already in use")

	resp, _ = b.do("PATCH", "/users/me", map[string]any{"newPassword": "secret2"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = b.do("PATCH", "/users/me", map[string]any{
		"currentPassword": "secret1",
		"newEmail":        "Alice2@Example.com",
		"newPassword":     "secret2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"email":"alice2@example.com"}`, string(body))

	// The reissued cookie identifies the new email.
	resp, body = b.do("GET", "/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"email":"alice2@example.com"}`, string(body))

	_, tasks := b.list("alice2@example.com")
	require.Len(t, tasks, 1)
	assert.Equal(t, "alice2@example.com", tasks[0].OwnerEmail)

	fresh := newBrowser(t, srv)
	resp, _ = fresh.do("POST", "/login", map[string]string{"email": "alice2@example.com", "password": "secret2"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = fresh.do("POST", "/login", map[string]string{"email": "alice@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_RejectsNonJSON(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{})

	resp, err := http.Post(srv.URL+"/signup", "text/plain", strings.NewReader("email=a"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{AuthRateLimit: 2, AuthRateWindow: time.Minute}))

	creds := map[string]string{"email": "ghost@example.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		resp, _ := b.do("POST", "/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, body := b.do("POST", "/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(body), "detail")

	resp, _ = b.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t, handler.RouterOptions{ClientOrigin: "http://localhost:3000"})

	req, err := http.NewRequest("OPTIONS", srv.URL+"/todos", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RejectsOutOfRangeEpochDates(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("a@x.io", "secret1")

	for _, date := range []any{-100000000000000, 300000000000000, 1e30} {
		resp, body := b.do("POST", "/todos", map[string]any{"title": "x", "date": date})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "date %v", date)
		assert.JSONEq(t, `{"detail":"Invalid date"}`, string(body))
	}

	task := b.createTask(map[string]any{"title": "ok"})
	resp, body := b.do("PUT", "/todos/"+task.ID, map[string]any{"date": -100000000000000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	status, tasks := b.list("a@x.io")
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ok", tasks[0].Title)
}

func TestRouter_ListAcceptsEncodedOwner(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("a@x.io", "secret1")
	b.createTask(map[string]any{"title": "mine"})

	status, tasks := b.list("a%40x.io")
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, tasks, 1)

	resp, _ := b.do("GET", "/todos/b%40x.io", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_CreateDateHasMicrosecondPrecision(t *testing.T) {
	b := newBrowser(t, newTestServer(t, handler.RouterOptions{}))
	b.signup("a@x.io", "secret1")

	task := b.createTask(map[string]any{"title": "x", "date": "2024-03-01T12:30:00.123456789Z"})
	assert.Equal(t, 123456000, task.Date.Nanosecond())

	task = b.createTask(map[string]any{"title": "now"})
	assert.Zero(t, task.Date.Nanosecond()%1000)
}
