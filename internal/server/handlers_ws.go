package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
	"github.com/StorytellerCZ/voteboard/internal/metrics"
	"github.com/StorytellerCZ/voteboard/internal/models"
	ws "github.com/StorytellerCZ/voteboard/internal/websocket"
)

const pongTimeout = 60 * time.Second

type itemsMessage struct {
	Items []models.Item `json:"items"`
}

type totalMessage struct {
	Total int64 `json:"total"`
}

// handleItemsStream streams sorted item snapshots over a websocket. The first
// message is the current list; every change that affects the requested scope
// produces a fresh one.
func (s *Server) handleItemsStream(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	scope := itemScope(c)
	if !scope.Valid() {
		return apperrors.InvalidInput("scope must be \"all\" or \"mine\"")
	}

	conn, release, ok := s.upgrade(c, "items")
	if !ok {
		return nil
	}

	// The connection is hijacked: failures after this point are logged, not
	// written as HTTP responses.
	view, err := s.svc.SubscribeItems(c.Request().Context(), userID, scope)
	if err != nil {
		slog.Error("Failed to start items session", "error", err)
		_ = conn.Close()
		release()
		return nil
	}

	s.runStream(conn, "items", release, view.Close, func(send func([]byte) bool) {
		for items := range view.Updates() {
			payload, err := json.Marshal(itemsMessage{Items: items})
			if err != nil {
				slog.Error("Failed to marshal items message", "error", err)
				continue
			}
			if !send(payload) {
				return
			}
		}
	})
	return nil
}

// handleTotalStream streams the absolute total score over a websocket. The
// first message is the current total; every score change produces a new one.
func (s *Server) handleTotalStream(c echo.Context) error {
	if _, err := currentUserID(c); err != nil {
		return err
	}

	conn, release, ok := s.upgrade(c, "total")
	if !ok {
		return nil
	}

	totalizer, err := s.svc.SubscribeTotal(c.Request().Context())
	if err != nil {
		slog.Error("Failed to start total session", "error", err)
		_ = conn.Close()
		release()
		return nil
	}

	s.runStream(conn, "total", release, totalizer.Close, func(send func([]byte) bool) {
		for total := range totalizer.Updates() {
			payload, err := json.Marshal(totalMessage{Total: total})
			if err != nil {
				slog.Error("Failed to marshal total message", "error", err)
				continue
			}
			if !send(payload) {
				return
			}
		}
	})
	return nil
}

// upgrade applies connection limits and performs the websocket handshake.
// On rejection it writes the HTTP error itself and reports ok=false.
func (s *Server) upgrade(c echo.Context, stream string) (conn *websocket.Conn, release func(), ok bool) {
	ip := c.RealIP()

	allowed, reason := s.connLimits.Acquire(ip)
	if !allowed {
		metrics.WSRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "stream", stream, "reason", reason, "ip", ip)
		_ = c.NoContent(http.StatusServiceUnavailable)
		return nil, nil, false
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.connLimits.Release(ip)
		metrics.WSRejectedTotal.WithLabelValues("upgrade_failed").Inc()
		slog.Warn("WebSocket upgrade failed", "stream", stream, "error", err, "ip", ip)
		return nil, nil, false
	}

	return conn, func() { s.connLimits.Release(ip) }, true
}

// runStream pumps session updates to the connection until the client goes
// away or falls behind. closeSession must cause the session's update channel
// to close.
func (s *Server) runStream(conn *websocket.Conn, stream string, release, closeSession func(), pump func(send func([]byte) bool)) {
	metrics.WSConnectedClients.WithLabelValues(stream).Inc()
	defer metrics.WSConnectedClients.WithLabelValues(stream).Dec()
	defer release()

	writer := ws.NewWriter(conn, s.clock)
	defer writer.Stop()
	defer closeSession()

	// Read pump: drains control frames and detects disconnect.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer closeSession()
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pump(func(msg []byte) bool {
		if !writer.TrySend(msg) {
			slog.Warn("Disconnecting slow websocket client", "stream", stream)
			return false
		}
		return true
	})

	writer.Stop()
	<-readDone
}
