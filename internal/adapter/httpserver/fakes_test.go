package httpserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/felle787/LocalRadar2/internal/app"
	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/platform/config"
	"github.com/felle787/LocalRadar2/internal/session"
)

var errNotImplemented = errors.New("not implemented")

type fakeSessions struct {
	mu       sync.Mutex
	snapshot session.Snapshot
	watchers []chan session.Snapshot

	signUpFn  func(ctx context.Context, email, password string, role domain.Role) (domain.Session, error)
	signInFn  func(ctx context.Context, email, password string) (domain.Session, error)
	signOutFn func(ctx context.Context) error
}

func (f *fakeSessions) SignUp(ctx context.Context, email, password string, role domain.Role) (domain.Session, error) {
	if f.signUpFn != nil {
		return f.signUpFn(ctx, email, password, role)
	}
	return domain.Session{}, errNotImplemented
}

func (f *fakeSessions) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	if f.signInFn != nil {
		return f.signInFn(ctx, email, password)
	}
	return domain.Session{}, errNotImplemented
}

func (f *fakeSessions) SignOut(ctx context.Context) error {
	if f.signOutFn != nil {
		return f.signOutFn(ctx)
	}
	return nil
}

func (f *fakeSessions) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeSessions) Watch(ctx context.Context) <-chan session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan session.Snapshot, 8)
	ch <- f.snapshot
	f.watchers = append(f.watchers, ch)
	return ch
}

func (f *fakeSessions) publish(snap session.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snap
	for _, ch := range f.watchers {
		ch <- snap
	}
}

func (f *fakeSessions) watcherCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

type fakeResumer struct {
	resumeFn func(ctx context.Context, token string) (domain.Session, error)
}

func (f *fakeResumer) Resume(ctx context.Context, token string) (domain.Session, error) {
	if f.resumeFn != nil {
		return f.resumeFn(ctx, token)
	}
	return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidToken, nil)
}

type mockAppService struct {
	saveVenueFn       func(ctx context.Context, input app.VenueInput) (*app.SaveVenueResult, error)
	myVenueFn         func(ctx context.Context) (*domain.Venue, error)
	listVenuesFn      func(ctx context.Context) ([]domain.Venue, error)
	nearbyVenuesFn    func(ctx context.Context, lat, lon, radiusKm float64) ([]app.NearbyVenue, error)
	mapMarkersFn      func(ctx context.Context) ([]app.MapMarker, error)
	postEventFn       func(ctx context.Context, input app.EventInput) (*domain.Event, error)
	deleteEventFn     func(ctx context.Context, eventID uuid.UUID) error
	myEventsFn        func(ctx context.Context) ([]domain.Event, error)
	feedFn            func(ctx context.Context) (*app.Feed, error)
	followFn          func(ctx context.Context, venueID string) (*domain.Profile, error)
	unfollowFn        func(ctx context.Context, venueID string) (*domain.Profile, error)
	addFavoriteFn     func(ctx context.Context, venueID string) (*domain.Profile, error)
	removeFavoriteFn  func(ctx context.Context, venueID string) (*domain.Profile, error)
	profileOverviewFn func(ctx context.Context) (*app.ProfileOverview, error)
	shell             app.Shell
}

func (m *mockAppService) SaveVenue(ctx context.Context, input app.VenueInput) (*app.SaveVenueResult, error) {
	if m.saveVenueFn != nil {
		return m.saveVenueFn(ctx, input)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) MyVenue(ctx context.Context) (*domain.Venue, error) {
	if m.myVenueFn != nil {
		return m.myVenueFn(ctx)
	}
	return nil, domain.ErrVenueNotFound
}

func (m *mockAppService) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	if m.listVenuesFn != nil {
		return m.listVenuesFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) NearbyVenues(ctx context.Context, lat, lon, radiusKm float64) ([]app.NearbyVenue, error) {
	if m.nearbyVenuesFn != nil {
		return m.nearbyVenuesFn(ctx, lat, lon, radiusKm)
	}
	return nil, nil
}

func (m *mockAppService) MapMarkers(ctx context.Context) ([]app.MapMarker, error) {
	if m.mapMarkersFn != nil {
		return m.mapMarkersFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) PostEvent(ctx context.Context, input app.EventInput) (*domain.Event, error) {
	if m.postEventFn != nil {
		return m.postEventFn(ctx, input)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	if m.deleteEventFn != nil {
		return m.deleteEventFn(ctx, eventID)
	}
	return errNotImplemented
}

func (m *mockAppService) MyEvents(ctx context.Context) ([]domain.Event, error) {
	if m.myEventsFn != nil {
		return m.myEventsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) Feed(ctx context.Context) (*app.Feed, error) {
	if m.feedFn != nil {
		return m.feedFn(ctx)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) FollowVenue(ctx context.Context, venueID string) (*domain.Profile, error) {
	if m.followFn != nil {
		return m.followFn(ctx, venueID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) UnfollowVenue(ctx context.Context, venueID string) (*domain.Profile, error) {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, venueID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) AddFavorite(ctx context.Context, venueID string) (*domain.Profile, error) {
	if m.addFavoriteFn != nil {
		return m.addFavoriteFn(ctx, venueID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) RemoveFavorite(ctx context.Context, venueID string) (*domain.Profile, error) {
	if m.removeFavoriteFn != nil {
		return m.removeFavoriteFn(ctx, venueID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) ProfileOverview(ctx context.Context) (*app.ProfileOverview, error) {
	if m.profileOverviewFn != nil {
		return m.profileOverviewFn(ctx)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Shell() app.Shell {
	return m.shell
}

type testServerOption func(*config.Config, *Deps)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(_ *config.Config, d *Deps) { d.HealthChecks = checks }
}

func withSessions(s *fakeSessions) testServerOption {
	return func(_ *config.Config, d *Deps) { d.Sessions = s }
}

func withResumer(r *fakeResumer) testServerOption {
	return func(_ *config.Config, d *Deps) { d.Resumer = r }
}

func withMaxStreams(n int) testServerOption {
	return func(c *config.Config, _ *Deps) { c.MaxStreamConnections = n }
}

// newSignedInServer returns a test server whose session is READY with testSession.
func newSignedInServer(t *testing.T, appSvc *mockAppService, opts ...testServerOption) *Server {
	t.Helper()
	sessions := &fakeSessions{snapshot: readySnapshot(domain.RoleCustomer)}
	return newTestServer(t, appSvc, append([]testServerOption{withSessions(sessions)}, opts...)...)
}

var testEpoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, appSvc *mockAppService, opts ...testServerOption) *Server {
	t.Helper()

	cfg := &config.Config{AppEnv: "development", Port: "0", MaxStreamConnections: 10}
	deps := Deps{
		Sessions: &fakeSessions{},
		Resumer:  &fakeResumer{},
		App:      appSvc,
		Clock:    clockwork.NewFakeClockAt(testEpoch),
		Registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}
	return NewServer(cfg, deps)
}
