package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/felle787/LocalRadar2/internal/adapter/metrics"
	"github.com/felle787/LocalRadar2/internal/app"
	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/platform/config"
	"github.com/felle787/LocalRadar2/internal/session"
)

type sessionManager interface {
	SignUp(ctx context.Context, email, password string, role domain.Role) (domain.Session, error)
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	SignOut(ctx context.Context) error
	Snapshot() session.Snapshot
	Watch(ctx context.Context) <-chan session.Snapshot
}

type sessionResumer interface {
	Resume(ctx context.Context, token string) (domain.Session, error)
}

type appService interface {
	SaveVenue(ctx context.Context, input app.VenueInput) (*app.SaveVenueResult, error)
	MyVenue(ctx context.Context) (*domain.Venue, error)
	ListVenues(ctx context.Context) ([]domain.Venue, error)
	NearbyVenues(ctx context.Context, lat, lon, radiusKm float64) ([]app.NearbyVenue, error)
	MapMarkers(ctx context.Context) ([]app.MapMarker, error)
	PostEvent(ctx context.Context, input app.EventInput) (*domain.Event, error)
	DeleteEvent(ctx context.Context, eventID uuid.UUID) error
	MyEvents(ctx context.Context) ([]domain.Event, error)
	Feed(ctx context.Context) (*app.Feed, error)
	FollowVenue(ctx context.Context, venueID string) (*domain.Profile, error)
	UnfollowVenue(ctx context.Context, venueID string) (*domain.Profile, error)
	AddFavorite(ctx context.Context, venueID string) (*domain.Profile, error)
	RemoveFavorite(ctx context.Context, venueID string) (*domain.Profile, error)
	ProfileOverview(ctx context.Context) (*app.ProfileOverview, error)
	Shell() app.Shell
}

type Deps struct {
	Sessions     sessionManager
	Resumer      sessionResumer
	App          appService
	Clock        clockwork.Clock
	Registry     *prometheus.Registry
	HealthChecks []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	sessions sessionManager
	resumer  sessionResumer
	app      appService

	registry      *prometheus.Registry
	httpMetrics   *metrics.HTTPMetrics
	streamMetrics *metrics.StreamMetrics
	streamSlots   chan struct{}
	streams       sync.WaitGroup
	done          chan struct{}
	closeOnce     sync.Once

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := deps.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	maxStreams := cfg.MaxStreamConnections
	if maxStreams <= 0 {
		maxStreams = 1
	}

	srv := &Server{
		echo:          e,
		config:        cfg,
		clock:         deps.Clock,
		sessions:      deps.Sessions,
		resumer:       deps.Resumer,
		app:           deps.App,
		registry:      registry,
		httpMetrics:   metrics.NewHTTPMetrics(registry),
		streamMetrics: metrics.NewStreamMetrics(registry),
		streamSlots:   make(chan struct{}, maxStreams),
		done:          make(chan struct{}),
		healthChecks:  deps.HealthChecks,
		startTime:     deps.Clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes open session streams and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	streamsDone := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(streamsDone)
	}()
	select {
	case <-streamsDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session streams still open: %w", ctx.Err())
	}
}

var _ http.Handler = (*Server)(nil)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
