package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
	"github.com/StorytellerCZ/voteboard/internal/leaderboard"
	"github.com/StorytellerCZ/voteboard/internal/models"
)

const maxItemNameLength = 200

type addItemRequest struct {
	Name string `json:"name"`
}

type addItemResponse struct {
	ID string `json:"id"`
}

type voteRequest struct {
	Direction string `json:"direction"`
}

type retractVoteRequest struct {
	WasUpvote bool `json:"was_upvote"`
}

type itemsResponse struct {
	Items []models.Item `json:"items"`
}

type totalResponse struct {
	Total int64 `json:"total"`
}

// handleAddItem creates a new item owned by the session user.
func (s *Server) handleAddItem(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}
	if len(req.Name) > maxItemNameLength {
		return apperrors.InvalidInput("name too long")
	}

	id, err := s.svc.AddItem(c.Request().Context(), userID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, addItemResponse{ID: id.String()})
}

// handleVote casts a vote on an item for the session user.
func (s *Server) handleVote(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}

	if err := s.svc.Vote(c.Request().Context(), itemID, userID, models.VoteDirection(req.Direction)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleRetractVote removes the session user's active vote from an item.
func (s *Server) handleRetractVote(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}

	var req retractVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}

	if err := s.svc.RetractVote(c.Request().Context(), itemID, userID, req.WasUpvote); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleListItems returns a one-shot sorted snapshot. Scope defaults to all.
func (s *Server) handleListItems(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	scope := itemScope(c)
	items, err := s.svc.Items(c.Request().Context(), userID, scope)
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.Item{}
	}
	return c.JSON(http.StatusOK, itemsResponse{Items: items})
}

// handleTotal returns the current total score across all items.
func (s *Server) handleTotal(c echo.Context) error {
	total, err := s.svc.TotalScore(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, totalResponse{Total: total})
}

func parseItemID(c echo.Context) (uuid.UUID, error) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput("invalid item id")
	}
	return itemID, nil
}

func itemScope(c echo.Context) leaderboard.ItemScope {
	if raw := c.QueryParam("scope"); raw != "" {
		return leaderboard.ItemScope(raw)
	}
	return leaderboard.ScopeAll
}
