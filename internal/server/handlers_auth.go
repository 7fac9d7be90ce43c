package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
	"github.com/StorytellerCZ/voteboard/internal/logging"
)

const maxUserNameLength = 64

type loginRequest struct {
	Name string `json:"name"`
}

type loginResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleLogin establishes a session for the given name, creating the identity
// on first use. The same name always maps to the same user id.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.InvalidInput("name must not be empty")
	}
	if len(name) > maxUserNameLength {
		return apperrors.InvalidInput("name too long")
	}

	user, err := s.users.Upsert(c.Request().Context(), name)
	if err != nil {
		return apperrors.StoreUnavailable("failed to resolve identity", err)
	}

	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Values[sessionKeyUserID] = user.ID.String()
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return apperrors.Internal("failed to save session", err)
	}

	logging.WithUser(user.ID.String()).Info("User logged in", "name", user.Name)
	return c.JSON(http.StatusOK, loginResponse{ID: user.ID.String(), Name: user.Name})
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(c echo.Context) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Options.MaxAge = -1
	delete(session.Values, sessionKeyUserID)
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return apperrors.Internal("failed to clear session", err)
	}
	return c.NoContent(http.StatusNoContent)
}
