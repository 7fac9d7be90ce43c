package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/StorytellerCZ/voteboard/internal/config"
	"github.com/StorytellerCZ/voteboard/internal/leaderboard"
	"github.com/StorytellerCZ/voteboard/internal/models"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

// --- Test fixtures ---

// stubUserStore keeps identities in memory: same name, same id.
type stubUserStore struct {
	mu     sync.Mutex
	byName map[string]models.User
	err    error
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{byName: make(map[string]models.User)}
}

func (s *stubUserStore) Upsert(_ context.Context, name string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.User{}, s.err
	}
	if user, ok := s.byName[name]; ok {
		return user, nil
	}
	user := models.User{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	s.byName[name] = user
	return user, nil
}

var errUserNotFound = errors.New("user not found")

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:              "test",
		Port:                "0",
		SessionSecret:       strings.Repeat("s", 32),
		LogLevel:            "error",
		LogFormat:           "text",
		VoteRatePerSecond:   1000,
		VoteRateBurst:       1000,
		MaxConnections:      100,
		ConnRatePerSecond:   100,
		ConnRateBurst:       100,
		MaxConnectionsPerIP: 100,
	}
}

type testEnv struct {
	server *Server
	store  *store.MemoryStore
	users  *stubUserStore
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	t.Cleanup(st.Close)

	clock := clockwork.NewRealClock()
	svc := leaderboard.NewService(st, clock)
	users := newStubUserStore()

	return &testEnv{
		server: NewServer(cfg, svc, users, nil, nil, clock),
		store:  st,
		users:  users,
		cfg:    cfg,
	}
}

// login performs a real login round-trip and returns the session cookies.
func (env *testEnv) login(t *testing.T, name string) []*http.Cookie {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"name": name})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "login failed: %s", rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "login must set a session cookie")
	return cookies
}

// do issues a request against the server with optional cookies and JSON body.
func (env *testEnv) do(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}
