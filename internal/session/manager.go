package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/felle787/LocalRadar2/internal/domain"
)

const (
	DefaultBootstrapTimeout = 8 * time.Second
	DefaultWriteTimeout     = 5 * time.Second

	watchBuffer = 32
)

type State int

const (
	StateSignedOut State = iota
	StateAwaitingProfile
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAwaitingProfile:
		return "AWAITING_PROFILE"
	case StateReady:
		return "READY"
	default:
		return "SIGNED_OUT"
	}
}

// Snapshot is the observable output of the Manager. Session and Profile are copies.
type Snapshot struct {
	State   State
	Session *domain.Session
	Profile *domain.Profile
	Status  domain.BootstrapStatus
}

type Config struct {
	BootstrapTimeout time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BootstrapTimeout <= 0 {
		c.BootstrapTimeout = DefaultBootstrapTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// bootstrap is the per-session sequence from AWAITING_PROFILE to READY. Its context scopes
// the store subscription: cancelling it releases the subscription on every exit path.
type bootstrap struct {
	session domain.Session
	ctx     context.Context
	cancel  context.CancelFunc
	timer   clockwork.Timer
	cell    settleCell
	started time.Time
}

// Manager is the session/profile bootstrap state machine. Construct one per application
// and inject it where the current session or profile is needed.
type Manager struct {
	identity domain.IdentityService
	profiles domain.ProfileStore
	clock    clockwork.Clock
	cfg      Config
	observer Observer

	mu          sync.Mutex
	state       State
	session     *domain.Session
	profile     *domain.Profile
	status      domain.BootstrapStatus
	current     *bootstrap
	watchers    map[chan Snapshot]struct{}
	unsubscribe func()
	closed      bool
	done        chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	pumps     sync.WaitGroup
	writes    sync.WaitGroup
}

// NewManager creates a Manager in SIGNED_OUT. observer may be nil.
func NewManager(identity domain.IdentityService, profiles domain.ProfileStore, clock clockwork.Clock, cfg Config, observer Observer) *Manager {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Manager{
		identity: identity,
		profiles: profiles,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		observer: observer,
		state:    StateSignedOut,
		watchers: make(map[chan Snapshot]struct{}),
		done:     make(chan struct{}),
	}
}

// Start subscribes to the identity service's session changes.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		unsubscribe := m.identity.OnSessionChange(m.handleSessionChange)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			unsubscribe()
			return
		}
		m.unsubscribe = unsubscribe
	})
}

// Close stops listening for session changes, tears down any active bootstrap and waits for
// in-flight store work to finish.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		unsubscribe := m.unsubscribe
		m.unsubscribe = nil
		m.closed = true
		m.teardownLocked()
		for ch := range m.watchers {
			delete(m.watchers, ch)
			close(ch)
		}
		close(m.done)
		m.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		m.pumps.Wait()
		m.writes.Wait()
	})
}

// SignUp creates an identity session and, before returning, the session's profile with the
// requested role.
func (m *Manager) SignUp(ctx context.Context, email, password string, role domain.Role) (domain.Session, error) {
	if !role.Valid() {
		return domain.Session{}, fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}

	sess, err := m.identity.CreateSession(ctx, email, password)
	if err != nil {
		return domain.Session{}, err
	}

	profile := domain.NewProfile(sess.Email, role, m.clock.Now())
	if err := m.profiles.Write(ctx, sess.ID, profile); err != nil {
		return sess, fmt.Errorf("failed to create profile: %w", err)
	}

	slog.InfoContext(ctx, "Account registered", "session_id", sess.ID, "role", role)
	return sess, nil
}

// SignIn requests a session. The profile bootstrap is driven by the resulting session change.
func (m *Manager) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	sess, err := m.identity.Authenticate(ctx, email, password)
	if err != nil {
		slog.InfoContext(ctx, "Sign-in rejected", "error", err)
		return domain.Session{}, err
	}
	return sess, nil
}

// SignOut clears local state immediately and terminates the identity session.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateSignedOut {
		m.teardownLocked()
		m.notifyLocked()
	}
	m.mu.Unlock()

	if err := m.identity.TerminateSession(ctx); err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}
	return nil
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Ready returns the current session and profile, or an error when the bootstrap has not
// reached READY.
func (m *Manager) Ready() (domain.Session, domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.session == nil:
		return domain.Session{}, domain.Profile{}, domain.ErrNotSignedIn
	case m.state != StateReady || m.profile == nil:
		return domain.Session{}, domain.Profile{}, domain.ErrProfileNotReady
	}
	return *m.session, m.profile.Clone(), nil
}

// Watch returns a channel that receives the current snapshot and then one snapshot per
// observable change. It is closed when ctx ends or the Manager closes. Slow receivers lose
// the oldest buffered snapshots; the latest one is always delivered.
func (m *Manager) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, watchBuffer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	m.watchers[ch] = struct{}{}
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.done:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[ch]; ok {
			delete(m.watchers, ch)
			close(ch)
		}
	}()

	return ch
}

func (m *Manager) handleSessionChange(sess *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if sess == nil {
		if m.state == StateSignedOut && m.session == nil {
			return
		}
		slog.Info("Session ended", "session_id", m.sessionID())
		m.teardownLocked()
		m.notifyLocked()
		return
	}

	// Same session reported again: keep the running bootstrap, refresh the handle.
	if m.session != nil && m.session.ID == sess.ID {
		refreshed := *sess
		m.session = &refreshed
		return
	}

	m.teardownLocked()
	m.beginLocked(*sess)
}

func (m *Manager) teardownLocked() {
	if b := m.current; b != nil {
		b.cell.close()
		b.timer.Stop()
		b.cancel()
		m.current = nil
	}
	m.state = StateSignedOut
	m.session = nil
	m.profile = nil
	m.status = domain.StatusIdle
}

func (m *Manager) beginLocked(sess domain.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &bootstrap{
		session: sess,
		ctx:     ctx,
		cancel:  cancel,
		started: m.clock.Now(),
	}
	b.timer = m.clock.AfterFunc(m.cfg.BootstrapTimeout, func() {
		go m.onTimeout(b)
	})

	m.current = b
	m.state = StateAwaitingProfile
	m.session = &sess
	m.profile = nil
	m.status = domain.StatusLoading
	m.notifyLocked()

	slog.Info("Loading profile", "session_id", sess.ID, "timeout", m.cfg.BootstrapTimeout)

	m.pumps.Add(1)
	go func() {
		defer m.pumps.Done()
		m.run(b)
	}()
}

// run opens the store subscription for b and dispatches its events until b is torn down.
// The first event settles the bootstrap; later events are live profile updates.
func (m *Manager) run(b *bootstrap) {
	events, err := m.profiles.Observe(b.ctx, b.session.ID)
	if err != nil {
		if b.ctx.Err() == nil {
			m.onStoreError(b, err)
		}
		return
	}

	first := true
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if first {
				first = false
				m.onFirstResponse(b, ev)
				continue
			}
			m.onUpdate(b, ev)
		}
	}
}

func (m *Manager) onFirstResponse(b *bootstrap, ev domain.ProfileEvent) {
	switch {
	case ev.Err != nil:
		m.onStoreError(b, ev.Err)
	case ev.NotFound():
		m.onNotFound(b)
	default:
		m.onExisting(b, *ev.Profile)
	}
}

func (m *Manager) onExisting(b *bootstrap, profile domain.Profile) {
	if !b.cell.claim(OutcomeExisting) {
		m.logLate(b, OutcomeExisting)
		return
	}
	b.timer.Stop()
	m.adopt(b, profile, OutcomeExisting)
}

func (m *Manager) onNotFound(b *bootstrap) {
	if !b.cell.claim(OutcomeNotFound) {
		m.logLate(b, OutcomeNotFound)
		return
	}
	b.timer.Stop()

	if !m.setStatus(b, domain.StatusCreating) {
		return
	}

	slog.Info("No profile found, creating default profile", "session_id", b.session.ID, "email", b.session.Email)
	profile := m.createDefault(b, m.defaultProfile(b))
	m.adopt(b, profile, OutcomeNotFound)
}

func (m *Manager) onStoreError(b *bootstrap, err error) {
	if !b.cell.claim(OutcomeStoreError) {
		m.logLate(b, OutcomeStoreError)
		return
	}
	b.timer.Stop()

	slog.Warn("Profile store error during bootstrap, using default profile", "session_id", b.session.ID, "error", err)
	m.adopt(b, m.defaultProfile(b), OutcomeStoreError)
}

func (m *Manager) onTimeout(b *bootstrap) {
	if !b.cell.claim(OutcomeTimeout) {
		return
	}

	fallback := m.defaultProfile(b)

	m.mu.Lock()
	if m.current != b {
		m.mu.Unlock()
		return
	}
	slog.Warn("Profile loading timed out, creating fallback profile", "session_id", b.session.ID, "timeout", m.cfg.BootstrapTimeout)
	m.status = domain.StatusSlowConnection
	m.notifyLocked()
	m.writes.Add(1)
	m.mu.Unlock()

	go m.persistFallback(b.session.ID, fallback)
	m.adopt(b, fallback, OutcomeTimeout)
}

// onUpdate applies a change delivered after the bootstrap's first response.
func (m *Manager) onUpdate(b *bootstrap, ev domain.ProfileEvent) {
	if ev.Err != nil {
		slog.Warn("Profile subscription error", "session_id", b.session.ID, "error", ev.Err)
		return
	}
	if ev.NotFound() {
		slog.Debug("Profile record missing from store, keeping local copy", "session_id", b.session.ID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != b || m.state != StateReady {
		return
	}
	profile := ev.Profile.Clone()
	m.profile = &profile
	m.notifyLocked()
}

// createDefault writes fallback only if no record exists. When a record appeared meanwhile,
// the stored one is returned instead. Store failures leave the local fallback in place.
func (m *Manager) createDefault(b *bootstrap, fallback domain.Profile) domain.Profile {
	budget := min(m.cfg.WriteTimeout, m.cfg.BootstrapTimeout-m.clock.Since(b.started))
	ctx, cancel := context.WithTimeout(b.ctx, budget)
	defer cancel()

	created, err := m.profiles.WriteIfAbsent(ctx, b.session.ID, fallback)
	if err != nil {
		slog.Warn("Failed to persist default profile, continuing with local copy", "session_id", b.session.ID, "error", err)
		m.observer.FallbackWriteFailed(OutcomeNotFound)
		return fallback
	}
	if created {
		return fallback
	}

	stored, err := m.profiles.Read(ctx, b.session.ID)
	if err != nil {
		slog.Warn("Profile appeared but could not be read, continuing with local copy", "session_id", b.session.ID, "error", err)
		return fallback
	}
	return *stored
}

// persistFallback is the fire-and-forget write of the timeout path. Its outcome is logged only.
func (m *Manager) persistFallback(sessionID string, fallback domain.Profile) {
	defer m.writes.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.WriteTimeout)
	defer cancel()

	if _, err := m.profiles.WriteIfAbsent(ctx, sessionID, fallback); err != nil {
		slog.Warn("Background profile write failed", "session_id", sessionID, "error", err)
		m.observer.FallbackWriteFailed(OutcomeTimeout)
	}
}

func (m *Manager) adopt(b *bootstrap, profile domain.Profile, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != b {
		return
	}

	adopted := profile.Clone()
	m.profile = &adopted
	m.status = domain.StatusIdle
	m.state = StateReady
	m.notifyLocked()

	elapsed := m.clock.Since(b.started)
	m.observer.BootstrapSettled(outcome, elapsed)
	slog.Info("Profile ready", "session_id", b.session.ID, "outcome", outcome.String(), "role", adopted.Role, "elapsed", elapsed)
}

func (m *Manager) setStatus(b *bootstrap, status domain.BootstrapStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != b {
		return false
	}
	m.status = status
	m.notifyLocked()
	return true
}

func (m *Manager) defaultProfile(b *bootstrap) domain.Profile {
	return domain.NewProfile(b.session.Email, domain.RoleCustomer, m.clock.Now())
}

func (m *Manager) logLate(b *bootstrap, outcome Outcome) {
	slog.Debug("Ignoring late bootstrap event", "session_id", b.session.ID, "event", outcome.String(), "settled_by", b.cell.outcome().String())
}

func (m *Manager) sessionID() string {
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state, Status: m.status}
	if m.session != nil {
		sess := *m.session
		snap.Session = &sess
	}
	if m.profile != nil {
		profile := m.profile.Clone()
		snap.Profile = &profile
	}
	return snap
}

func (m *Manager) notifyLocked() {
	if len(m.watchers) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for ch := range m.watchers {
		offerLatest(ch, snap)
	}
}

// offerLatest sends snap, discarding the oldest buffered snapshots of a slow receiver so
// the most recent state is always delivered. Callers hold m.mu, so no other sender races.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
