// Package server exposes the voting core over HTTP and websocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/StorytellerCZ/voteboard/internal/config"
	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
	"github.com/StorytellerCZ/voteboard/internal/leaderboard"
	"github.com/StorytellerCZ/voteboard/internal/models"
	ws "github.com/StorytellerCZ/voteboard/internal/websocket"
)

const (
	sessionName      = "voteboard-session"
	sessionKeyUserID = "userID"
	sessionMaxAge    = 7 * 24 * time.Hour
)

// LeaderboardService is the voting core surface the server exposes.
type LeaderboardService interface {
	AddItem(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error)
	Vote(ctx context.Context, itemID, userID uuid.UUID, direction models.VoteDirection) error
	RetractVote(ctx context.Context, itemID, userID uuid.UUID, wasUpvote bool) error
	Items(ctx context.Context, userID uuid.UUID, scope leaderboard.ItemScope) ([]models.Item, error)
	TotalScore(ctx context.Context) (int64, error)
	SubscribeItems(ctx context.Context, userID uuid.UUID, scope leaderboard.ItemScope) (*leaderboard.ItemView, error)
	SubscribeTotal(ctx context.Context) (*leaderboard.Totalizer, error)
}

// UserStore is the identity surface: stable opaque ids keyed by name.
type UserStore interface {
	Upsert(ctx context.Context, name string) (models.User, error)
}

// Pinger is a minimal health-check interface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to Pinger.
type RedisPinger struct {
	Client *goredis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	svc          LeaderboardService
	users        UserStore
	clock        clockwork.Clock
	sessionStore *sessions.CookieStore
	connLimits   *ws.ConnectionLimits
	voteLimiter  *userRateLimiter
	checkOrigin  func(r *http.Request) bool
	dbPinger     Pinger
	redisPinger  Pinger
	startTime    time.Time
}

// NewServer wires the HTTP surface. redisPinger may be nil when the memory
// backend is in use.
func NewServer(cfg *config.Config, svc LeaderboardService, users UserStore, dbPinger, redisPinger Pinger, clock clockwork.Clock) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	s := &Server{
		echo:         e,
		config:       cfg,
		svc:          svc,
		users:        users,
		clock:        clock,
		sessionStore: sessionStore,
		connLimits:   ws.NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnRatePerSecond, cfg.ConnRateBurst),
		voteLimiter:  newUserRateLimiter(cfg.VoteRatePerSecond, cfg.VoteRateBurst, clock),
		checkOrigin:  ws.NewCheckOrigin(cfg.AllowedOrigins, cfg.AppEnv == "development"),
		dbPinger:     dbPinger,
		redisPinger:  redisPinger,
		startTime:    clock.Now(),
	}

	s.registerRoutes()
	return s
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
