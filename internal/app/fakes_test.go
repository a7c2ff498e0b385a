package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/session"
)

var errBoom = errors.New("boom")

type fakeSessions struct {
	mu      sync.Mutex
	session *domain.Session
	profile *domain.Profile
	status  domain.BootstrapStatus
}

func (f *fakeSessions) Ready() (domain.Session, domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return domain.Session{}, domain.Profile{}, domain.ErrNotSignedIn
	}
	if f.profile == nil {
		return domain.Session{}, domain.Profile{}, domain.ErrProfileNotReady
	}
	return *f.session, f.profile.Clone(), nil
}

func (f *fakeSessions) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := session.Snapshot{Session: f.session, Profile: f.profile, Status: f.status}
	switch {
	case f.session == nil:
		snap.State = session.StateSignedOut
	case f.profile == nil:
		snap.State = session.StateAwaitingProfile
	default:
		snap.State = session.StateReady
	}
	return snap
}

func (f *fakeSessions) signIn(id string, role domain.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &domain.Session{ID: id, Email: id + "@example.com"}
	p := domain.NewProfile(id+"@example.com", role, time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC))
	f.profile = &p
}

func (f *fakeSessions) setProfile(p domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = &p
}

type fakeVenues struct {
	mu        sync.Mutex
	venues    map[string]domain.Venue
	order     []string
	upsertErr error
	listErr   error
	clock     clockwork.Clock
}

func newFakeVenues(clock clockwork.Clock) *fakeVenues {
	return &fakeVenues{venues: make(map[string]domain.Venue), clock: clock}
}

func (f *fakeVenues) Get(_ context.Context, ownerID string) (*domain.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.venues[ownerID]
	if !ok {
		return nil, domain.ErrVenueNotFound
	}
	return &v, nil
}

func (f *fakeVenues) GetVenue(ctx context.Context, ownerID string) (*domain.Venue, error) {
	return f.Get(ctx, ownerID)
}

func (f *fakeVenues) List(context.Context) ([]domain.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Venue, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.venues[id])
	}
	return out, nil
}

func (f *fakeVenues) Upsert(ctx context.Context, v domain.Venue) (*domain.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := f.clock.Now()
	if existing, ok := f.venues[v.OwnerID]; ok {
		v.CreatedAt = existing.CreatedAt
	} else {
		v.CreatedAt = now
		f.order = append(f.order, v.OwnerID)
	}
	v.UpdatedAt = now
	f.venues[v.OwnerID] = v
	return &v, nil
}

func (f *fakeVenues) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.venues), nil
}

func (f *fakeVenues) add(v domain.Venue) {
	_, _ = f.Upsert(context.Background(), v)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.Event
	clock  *clockwork.FakeClock
}

func (f *fakeEvents) Create(_ context.Context, e domain.Event) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = f.clock.Now()
	f.clock.Advance(time.Second)
	f.events = append(f.events, e)
	return &e, nil
}

func (f *fakeEvents) Delete(_ context.Context, venueID string, eventID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == eventID && e.VenueID == venueID {
			f.events = slices.Delete(f.events, i, i+1)
			return nil
		}
	}
	return domain.ErrEventNotFound
}

func (f *fakeEvents) ListByVenue(_ context.Context, venueID string) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range slices.Backward(f.events) {
		if e.VenueID == venueID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) ListLatest(_ context.Context, limit int) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range slices.Backward(f.events) {
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeGeocoder struct {
	coords  domain.Coordinates
	err     error
	queries []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (domain.Coordinates, error) {
	f.queries = append(f.queries, address)
	return f.coords, f.err
}

type fakeInvalidator struct {
	mu          sync.Mutex
	invalidated []string
	err         error
}

func (f *fakeInvalidator) InvalidateVenue(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, ownerID)
	return f.err
}
