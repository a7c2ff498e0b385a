package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second

	// healthCheckSessionID is never issued by the identity service, so reading it always
	// round-trips to the store without touching a real profile.
	healthCheckSessionID = "_healthcheck"
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProfileStoreCheck reads a sentinel record from the profile store. A missing record is
// the expected answer.
func ProfileStoreCheck(store domain.ProfileStore) HealthCheck {
	return HealthCheck{
		Name: "profile_store",
		Check: func(ctx context.Context) error {
			_, err := store.Read(ctx, healthCheckSessionID)
			if err == nil || errors.Is(err, domain.ErrProfileNotFound) {
				return nil
			}
			return err
		},
	}
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":        "ok",
		"uptime":        s.clock.Since(s.startTime).Seconds(),
		"session_state": s.sessions.Snapshot().State.String(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

// runHealthChecks runs every check and reports each result. The first failure in
// registration order is named in failed_check.
func (s *Server) runHealthChecks(c echo.Context, ctx context.Context) error {
	results := make(map[string]string, len(s.healthChecks))
	failed := ""
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			results[hc.Name] = err.Error()
			if failed == "" {
				failed = hc.Name
			}
			continue
		}
		results[hc.Name] = "ok"
	}

	response := map[string]any{
		"status":        "ready",
		"checks":        results,
		"session_state": s.sessions.Snapshot().State.String(),
	}
	status := http.StatusOK
	if failed != "" {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
		response["failed_check"] = failed
	}

	if err := c.JSON(status, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
