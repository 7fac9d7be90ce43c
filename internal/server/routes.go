package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/health/live", s.handleHealthLive)
	s.echo.GET("/health/ready", s.handleHealthReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/auth/login", s.handleLogin)
	s.echo.POST("/auth/logout", s.handleLogout)

	api := s.echo.Group("/api", s.requireAuth)
	api.GET("/items", s.handleListItems)
	api.GET("/total", s.handleTotal)
	api.POST("/items", s.handleAddItem)
	api.POST("/items/:id/vote", s.handleVote, s.voteRateLimit)
	api.DELETE("/items/:id/vote", s.handleRetractVote, s.voteRateLimit)

	wsGroup := s.echo.Group("/ws", s.requireAuth)
	wsGroup.GET("/items", s.handleItemsStream)
	wsGroup.GET("/total", s.handleTotalStream)
}
