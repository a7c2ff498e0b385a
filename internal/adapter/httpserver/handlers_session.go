package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerSessionRoutes() {
	s.echo.GET("/session", s.handleSession)
	s.echo.GET("/session/stream", s.handleSessionStream)
	s.echo.GET("/shell", s.handleShell)
}

func (s *Server) handleSession(c echo.Context) error {
	return writeJSON(c, http.StatusOK, newSnapshotResponse(s.sessions.Snapshot()))
}

func (s *Server) handleShell(c echo.Context) error {
	return writeJSON(c, http.StatusOK, s.app.Shell())
}
