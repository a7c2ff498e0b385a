package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felle787/LocalRadar2/internal/domain"
)

// fakeIdentity emits session changes synchronously, like a local auth SDK would.
type fakeIdentity struct {
	mu        sync.Mutex
	listeners map[int]func(*domain.Session)
	nextID    int
	accounts  map[string]string
	ids       map[string]string
	createErr error
	authErr   error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		listeners: make(map[int]func(*domain.Session)),
		accounts:  make(map[string]string),
		ids:       make(map[string]string),
	}
}

func (f *fakeIdentity) CreateSession(_ context.Context, email, password string) (domain.Session, error) {
	f.mu.Lock()
	if f.createErr != nil {
		err := f.createErr
		f.mu.Unlock()
		return domain.Session{}, err
	}
	if _, exists := f.accounts[email]; exists {
		f.mu.Unlock()
		return domain.Session{}, domain.NewIdentityError(domain.IdentityEmailTaken, nil)
	}
	f.accounts[email] = password
	f.ids[email] = "uid-" + email
	sess := domain.Session{ID: f.ids[email], Email: email}
	f.mu.Unlock()

	f.emit(&sess)
	return sess, nil
}

func (f *fakeIdentity) Authenticate(_ context.Context, email, password string) (domain.Session, error) {
	f.mu.Lock()
	if f.authErr != nil {
		err := f.authErr
		f.mu.Unlock()
		return domain.Session{}, err
	}
	if stored, ok := f.accounts[email]; !ok || stored != password {
		f.mu.Unlock()
		return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidCredentials, nil)
	}
	sess := domain.Session{ID: f.ids[email], Email: email}
	f.mu.Unlock()

	f.emit(&sess)
	return sess, nil
}

func (f *fakeIdentity) TerminateSession(_ context.Context) error {
	f.emit(nil)
	return nil
}

func (f *fakeIdentity) OnSessionChange(fn func(*domain.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeIdentity) register(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = password
	f.ids[email] = "uid-" + email
}

func (f *fakeIdentity) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeIdentity) emit(sess *domain.Session) {
	f.mu.Lock()
	fns := make([]func(*domain.Session), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}

type subscription struct {
	sessionID string
	ctx       context.Context
	events    chan domain.ProfileEvent
}

func (s *subscription) push(ev domain.ProfileEvent) {
	s.events <- ev
}

func (s *subscription) cancelled() bool {
	return s.ctx.Err() != nil
}

type writeCall struct {
	op        string
	sessionID string
	profile   domain.Profile
}

// scriptedStore hands every observation to the test, which decides what the store answers
// and when.
type scriptedStore struct {
	mu            sync.Mutex
	subs          []*subscription
	writes        []writeCall
	records       map[string]domain.Profile
	observeErr    error
	writeErr      error
	absentErr     error
	absentCreated bool
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		records:       make(map[string]domain.Profile),
		absentCreated: true,
	}
}

func (s *scriptedStore) Read(_ context.Context, sessionID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.records[sessionID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	c := profile.Clone()
	return &c, nil
}

func (s *scriptedStore) Observe(ctx context.Context, sessionID string) (<-chan domain.ProfileEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observeErr != nil {
		return nil, s.observeErr
	}
	sub := &subscription{sessionID: sessionID, ctx: ctx, events: make(chan domain.ProfileEvent, 8)}
	s.subs = append(s.subs, sub)
	return sub.events, nil
}

func (s *scriptedStore) Write(_ context.Context, sessionID string, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, writeCall{op: "write", sessionID: sessionID, profile: profile.Clone()})
	if s.writeErr != nil {
		return s.writeErr
	}
	s.records[sessionID] = profile.Clone()
	return nil
}

func (s *scriptedStore) WriteIfAbsent(_ context.Context, sessionID string, profile domain.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, writeCall{op: "write_if_absent", sessionID: sessionID, profile: profile.Clone()})
	if s.absentErr != nil {
		return false, s.absentErr
	}
	if !s.absentCreated {
		return false, nil
	}
	s.records[sessionID] = profile.Clone()
	return true, nil
}

func (s *scriptedStore) setRecord(sessionID string, profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = profile
}

func (s *scriptedStore) getWrites() []writeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]writeCall, len(s.writes))
	copy(result, s.writes)
	return result
}

func (s *scriptedStore) subscriptions() []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*subscription, len(s.subs))
	copy(result, s.subs)
	return result
}

// awaitSubscription waits until the n-th (1-based) observation has been opened and returns it.
func (s *scriptedStore) awaitSubscription(t *testing.T, n int) *subscription {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.subscriptions()) >= n
	}, time.Second, time.Millisecond)
	return s.subscriptions()[n-1]
}

type settledCall struct {
	outcome Outcome
	elapsed time.Duration
}

type recordingObserver struct {
	mu           sync.Mutex
	settled      []settledCall
	failedWrites []Outcome
}

func (o *recordingObserver) BootstrapSettled(outcome Outcome, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled = append(o.settled, settledCall{outcome: outcome, elapsed: elapsed})
}

func (o *recordingObserver) FallbackWriteFailed(outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failedWrites = append(o.failedWrites, outcome)
}

func (o *recordingObserver) getSettled() []settledCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]settledCall, len(o.settled))
	copy(result, o.settled)
	return result
}

func (o *recordingObserver) getFailedWrites() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]Outcome, len(o.failedWrites))
	copy(result, o.failedWrites)
	return result
}

// statusRecorder drains a Watch channel and keeps every snapshot it saw.
type statusRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	done  chan struct{}
}

func recordSnapshots(ch <-chan Snapshot) *statusRecorder {
	r := &statusRecorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for snap := range ch {
			r.mu.Lock()
			r.snaps = append(r.snaps, snap)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *statusRecorder) statuses() []domain.BootstrapStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.BootstrapStatus, 0, len(r.snaps))
	for _, s := range r.snaps {
		result = append(result, s.Status)
	}
	return result
}

func (r *statusRecorder) sawStatus(status domain.BootstrapStatus) bool {
	for _, s := range r.statuses() {
		if s == status {
			return true
		}
	}
	return false
}
