package memory

import (
	"context"
	"sync"

	"github.com/felle787/LocalRadar2/internal/domain"
)

const observerBuffer = 16

// ProfileStore keeps profile records in a map keyed by session ID. Safe for concurrent use.
type ProfileStore struct {
	mu        sync.Mutex
	records   map[string]domain.Profile
	observers map[string]map[chan domain.ProfileEvent]struct{}
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		records:   make(map[string]domain.Profile),
		observers: make(map[string]map[chan domain.ProfileEvent]struct{}),
	}
}

func (s *ProfileStore) Read(_ context.Context, sessionID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.records[sessionID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	c := profile.Clone()
	return &c, nil
}

// Observe emits the current record (or not-found) followed by every write to the record.
// The channel is closed once ctx is done.
func (s *ProfileStore) Observe(ctx context.Context, sessionID string) (<-chan domain.ProfileEvent, error) {
	ch := make(chan domain.ProfileEvent, observerBuffer)

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		close(ch)
		return ch, nil
	}
	subs, ok := s.observers[sessionID]
	if !ok {
		subs = make(map[chan domain.ProfileEvent]struct{})
		s.observers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	ch <- s.eventLocked(sessionID)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		current := s.observers[sessionID]
		delete(current, ch)
		if len(current) == 0 {
			delete(s.observers, sessionID)
		}
		close(ch)
	}()

	return ch, nil
}

func (s *ProfileStore) Write(ctx context.Context, sessionID string, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "write", Path: domain.ProfilePath(sessionID), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = profile.Clone()
	s.publishLocked(sessionID)
	return nil
}

func (s *ProfileStore) WriteIfAbsent(ctx context.Context, sessionID string, profile domain.Profile) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &domain.StoreError{Op: "write", Path: domain.ProfilePath(sessionID), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[sessionID]; exists {
		return false, nil
	}
	s.records[sessionID] = profile.Clone()
	s.publishLocked(sessionID)
	return true, nil
}

// Observers returns the number of open observations of sessionID.
func (s *ProfileStore) Observers(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers[sessionID])
}

func (s *ProfileStore) eventLocked(sessionID string) domain.ProfileEvent {
	profile, ok := s.records[sessionID]
	if !ok {
		return domain.ProfileEvent{}
	}
	c := profile.Clone()
	return domain.ProfileEvent{Profile: &c}
}

// publishLocked delivers the current record to every observer. A slow observer loses its
// oldest buffered events, never the newest, so it always converges on the stored value.
func (s *ProfileStore) publishLocked(sessionID string) {
	for ch := range s.observers[sessionID] {
		ev := s.eventLocked(sessionID)
		for {
			select {
			case ch <- ev:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
