// Package websocket provides the connection-side plumbing for live streams:
// a buffered per-connection writer, origin checking, and connection limits.
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	messageBufferSize = 16
)

// Writer owns the write side of one websocket connection. Messages are
// queued on a buffered channel and written by a single goroutine with a
// write deadline; pings keep idle connections alive. If the client cannot
// keep up with the buffer, TrySend reports it so the caller can disconnect.
type Writer struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	sendCh   chan []byte
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewWriter(conn *websocket.Conn, clock clockwork.Clock) *Writer {
	w := &Writer{
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, messageBufferSize),
		doneCh: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-w.sendCh:
			if !ok {
				return
			}
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.doneCh:
			return
		}
	}
}

// TrySend queues a message without blocking. Returns false if the client's
// buffer is full.
func (w *Writer) TrySend(msg []byte) bool {
	select {
	case w.sendCh <- msg:
		return true
	default:
		return false
	}
}

// Stop ends the writer goroutine and closes the connection.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.doneCh)
		_ = w.conn.Close()
	})
}
