package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/jonboulle/clockwork"

	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/session"
)

const (
	DefaultSaveTimeout = 10 * time.Second
	feedEventLimit     = 10
	discoveryLimit     = 10
)

// Sessions is the part of the session manager the service depends on.
type Sessions interface {
	Ready() (domain.Session, domain.Profile, error)
	Snapshot() session.Snapshot
}

type Config struct {
	SaveTimeout time.Duration
}

// Service is the application layer. It is the only component that references multiple
// domain components.
type Service struct {
	sessions    Sessions
	profiles    domain.ProfileStore
	venues      domain.VenueRepository
	venueSource domain.VenueSource
	invalidator domain.VenueCacheInvalidator
	events      domain.EventRepository
	geocoder    domain.Geocoder
	clock       clockwork.Clock
	saveTimeout time.Duration
	validate    *validator.Validate

	// profileMu serializes read-modify-write cycles on the profile record.
	profileMu sync.Mutex
}

type Deps struct {
	Sessions    Sessions
	Profiles    domain.ProfileStore
	Venues      domain.VenueRepository
	VenueSource domain.VenueSource
	Invalidator domain.VenueCacheInvalidator
	Events      domain.EventRepository
	Geocoder    domain.Geocoder
	Clock       clockwork.Clock
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultSaveTimeout
	}
	if deps.VenueSource == nil {
		deps.VenueSource = repositorySource{deps.Venues}
	}
	return &Service{
		sessions:    deps.Sessions,
		profiles:    deps.Profiles,
		venues:      deps.Venues,
		venueSource: deps.VenueSource,
		invalidator: deps.Invalidator,
		events:      deps.Events,
		geocoder:    deps.Geocoder,
		clock:       deps.Clock,
		saveTimeout: cfg.SaveTimeout,
		validate:    validator.New(),
	}
}

// actor returns the current READY session and profile.
func (s *Service) actor() (domain.Session, domain.Profile, error) {
	return s.sessions.Ready()
}

// business returns the current session if its profile is a business account.
func (s *Service) business() (domain.Session, domain.Profile, error) {
	sess, profile, err := s.actor()
	if err != nil {
		return domain.Session{}, domain.Profile{}, err
	}
	if profile.Role != domain.RoleBusiness {
		return domain.Session{}, domain.Profile{}, domain.ErrRoleNotAllowed
	}
	return sess, profile, nil
}

// lookupVenues resolves venue IDs through the cache, skipping venues that no longer exist.
func (s *Service) lookupVenues(ctx context.Context, ids []string) ([]domain.Venue, error) {
	venues := make([]domain.Venue, 0, len(ids))
	for _, id := range ids {
		v, err := s.venueSource.GetVenue(ctx, id)
		if errors.Is(err, domain.ErrVenueNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		venues = append(venues, *v)
	}
	return venues, nil
}

// repositorySource serves venue lookups straight from the repository when no cache is wired.
type repositorySource struct {
	repo domain.VenueRepository
}

func (r repositorySource) GetVenue(ctx context.Context, ownerID string) (*domain.Venue, error) {
	return r.repo.Get(ctx, ownerID)
}
