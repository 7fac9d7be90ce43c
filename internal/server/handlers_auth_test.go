package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
)

func TestLoginCreatesStableIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/login", map[string]string{"name": "alice"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeJSON[loginResponse](t, rec)
	assert.Equal(t, "alice", first.Name)
	assert.NotEmpty(t, first.ID)

	// Logging in again with the same name yields the same id.
	rec = env.do(http.MethodPost, "/auth/login", map[string]string{"name": "alice"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeJSON[loginResponse](t, rec)
	assert.Equal(t, first.ID, second.ID)
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/login", map[string]string{"name": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/auth/login", map[string]string{"name": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/auth/login", map[string]string{"name": strings.Repeat("x", maxUserNameLength+1)}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeJSON[apperrors.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.KindInvalidInput, resp.Kind)
}

func TestLoginStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.users.err = errUserNotFound

	rec := env.do(http.MethodPost, "/auth/login", map[string]string{"name": "alice"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "alice")

	rec := env.do(http.MethodPost, "/auth/logout", nil, cookies)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The cleared cookie no longer authenticates.
	cleared := rec.Result().Cookies()
	rec = env.do(http.MethodGet, "/api/items", nil, cleared)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGarbageSessionCookieRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/items", nil, []*http.Cookie{
		{Name: sessionName, Value: "not-a-real-session"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
