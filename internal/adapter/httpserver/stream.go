package httpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	apperrors "github.com/felle787/LocalRadar2/internal/platform/errors"
	"github.com/felle787/LocalRadar2/internal/session"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// handleSessionStream upgrades to a WebSocket and writes one JSON snapshot per session
// change until the client disconnects or the server shuts down.
func (s *Server) handleSessionStream(c echo.Context) error {
	select {
	case s.streamSlots <- struct{}{}:
	default:
		s.streamMetrics.Rejected.Inc()
		return apperrors.UnavailableError("too many session streams", nil).WithCode("stream_limit")
	}
	defer func() { <-s.streamSlots }()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newCheckOrigin(!s.config.IsProduction()),
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.InfoContext(c.Request().Context(), "Session stream upgrade failed", "error", err)
		return nil
	}

	s.streams.Add(1)
	defer s.streams.Done()
	s.streamMetrics.ActiveConnections.Inc()
	defer s.streamMetrics.ActiveConnections.Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	w := &streamWriter{conn: conn, clock: s.clock, sent: s.streamMetrics.SnapshotsSent.Inc}
	go w.readUntilClosed(cancel)
	w.run(ctx, s.sessions.Watch(ctx), s.done)
	return nil
}

type streamWriter struct {
	conn  *websocket.Conn
	clock clockwork.Clock
	sent  func()
}

// Socket deadlines use wall time; the injected clock only drives the ping ticker.

// readUntilClosed drains client frames so pongs and close frames are processed, and
// cancels the stream when the connection fails.
func (w *streamWriter) readUntilClosed(cancel context.CancelFunc) {
	defer cancel()

	w.conn.SetReadLimit(512)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongDeadline))
	})
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (w *streamWriter) run(ctx context.Context, snapshots <-chan session.Snapshot, done <-chan struct{}) {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer func() { _ = w.conn.Close() }()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				w.close(websocket.CloseGoingAway, "session manager closed")
				return
			}
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := w.conn.WriteJSON(newSnapshotResponse(snap)); err != nil {
				return
			}
			w.sent()
		case <-ticker.Chan():
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			w.close(websocket.CloseGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *streamWriter) close(code int, reason string) {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
