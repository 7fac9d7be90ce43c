package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
)

// contextKeyUserID matches the key the error middleware reads for logging.
const contextKeyUserID = "userID"

// requireAuth resolves the session cookie into a user id. Requests without a
// valid session are rejected before reaching the handler.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return apperrors.Unauthenticated("invalid session")
		}

		raw, ok := session.Values[sessionKeyUserID].(string)
		if !ok || raw == "" {
			return apperrors.Unauthenticated("login required")
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.Unauthenticated("invalid session")
		}

		c.Set(contextKeyUserID, userID)
		return next(c)
	}
}

// currentUserID reads the authenticated user id placed by requireAuth.
func currentUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := c.Get(contextKeyUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.Unauthenticated("login required")
	}
	return userID, nil
}

// userRateLimiter keeps a token bucket per user id for vote endpoints.
type userRateLimiter struct {
	mu        sync.Mutex
	limiters  map[uuid.UUID]*userLimiterEntry
	rate      rate.Limit
	burst     int
	clock     clockwork.Clock
	cleanupAt time.Time
}

type userLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newUserRateLimiter(perSecond float64, burst int, clock clockwork.Clock) *userRateLimiter {
	return &userRateLimiter{
		limiters:  make(map[uuid.UUID]*userLimiterEntry),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		clock:     clock,
		cleanupAt: clock.Now().Add(5 * time.Minute),
	}
}

func (l *userRateLimiter) allow(userID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-10 * time.Minute)
		for id, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, id)
			}
		}
		l.cleanupAt = now.Add(5 * time.Minute)
	}

	entry, exists := l.limiters[userID]
	if !exists {
		entry = &userLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[userID] = entry
	}

	entry.lastSeen = now
	return entry.limiter.Allow()
}

// voteRateLimit throttles vote mutations per authenticated user.
func (s *Server) voteRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		if !s.voteLimiter.allow(userID) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "vote rate limit exceeded")
		}
		return next(c)
	}
}
