package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/felle787/LocalRadar2/internal/domain"
)

const (
	MinPasswordLength = 6
	DefaultSessionTTL = 7 * 24 * time.Hour
	issuer            = "localradar"
)

type Config struct {
	Secret     string
	SessionTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// Service implements domain.IdentityService. It holds at most one current session,
// mirroring a single signed-in client.
type Service struct {
	accounts domain.AccountRepository
	clock    clockwork.Clock
	tokens   tokenIssuer
	ttl      time.Duration
	cost     int
	validate *validator.Validate

	// notifyMu serializes session transitions with their notifications so listeners
	// observe changes in order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *domain.Session
	expiry    clockwork.Timer
	listeners map[int]func(*domain.Session)
	nextID    int
}

var _ domain.IdentityService = (*Service)(nil)

func NewService(accounts domain.AccountRepository, clock clockwork.Clock, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		accounts:  accounts,
		clock:     clock,
		tokens:    tokenIssuer{secret: []byte(cfg.Secret), issuer: issuer, now: clock.Now},
		ttl:       cfg.SessionTTL,
		cost:      cfg.BcryptCost,
		validate:  validator.New(),
		listeners: make(map[int]func(*domain.Session)),
	}
}

// CreateSession registers a new account and signs it in.
func (s *Service) CreateSession(ctx context.Context, email, password string) (domain.Session, error) {
	email = normalizeEmail(email)
	if err := s.validateCredentials(email, password); err != nil {
		return domain.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityWeakPassword, err)
	}

	account, err := s.accounts.Create(ctx, email, string(hash))
	if errors.Is(err, domain.ErrEmailTaken) {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityEmailTaken, err)
	}
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityUnavailable, err)
	}

	slog.Info("Account created", "session_id", account.ID.String())
	return s.signIn(account.ID, account.Email)
}

// Authenticate verifies credentials and signs the account in. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.Session, error) {
	email = normalizeEmail(email)
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidCredentials, nil)
	}
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidCredentials, nil)
	}

	return s.signIn(account.ID, account.Email)
}

// Resume restores a session from a previously issued token that has not expired.
func (s *Service) Resume(ctx context.Context, token string) (domain.Session, error) {
	claims, err := s.tokens.parse(token)
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidToken, err)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidToken, err)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityInvalidToken, err)
	}
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityUnavailable, err)
	}

	session := domain.Session{
		ID:        account.ID.String(),
		Email:     account.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	s.setCurrent(&session)
	return session, nil
}

// TerminateSession signs the current session out. It is a no-op when signed out.
func (s *Service) TerminateSession(context.Context) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	slog.Info("Session terminated", "session_id", s.current.ID)
	s.clearLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, nil)
	return nil
}

// OnSessionChange registers fn for every session change. fn receives nil on sign-out
// and expiry, and must not call back into the service.
func (s *Service) OnSessionChange(fn func(*domain.Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Current returns a copy of the current session, or nil when signed out.
func (s *Service) Current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	session := *s.current
	return &session
}

// Close stops the expiry timer. Listeners are not notified.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

func (s *Service) validateCredentials(email, password string) error {
	err := s.validate.Struct(credentials{Email: email, Password: password})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		if fieldErrs[0].Field() == "Email" {
			return domain.NewIdentityError(domain.IdentityInvalidEmail, err)
		}
		return domain.NewIdentityError(domain.IdentityWeakPassword,
			fmt.Errorf("password must be at least %d characters", MinPasswordLength))
	}
	return domain.NewIdentityError(domain.IdentityInvalidEmail, err)
}

func (s *Service) signIn(accountID uuid.UUID, email string) (domain.Session, error) {
	token, expiresAt, err := s.tokens.issue(accountID, email, s.ttl)
	if err != nil {
		return domain.Session{}, domain.NewIdentityError(domain.IdentityUnavailable, err)
	}

	session := domain.Session{
		ID:        accountID.String(),
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	s.setCurrent(&session)
	return session, nil
}

func (s *Service) setCurrent(session *domain.Session) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.clearLocked()
	current := *session
	s.current = &current
	s.expiry = s.clock.AfterFunc(session.ExpiresAt.Sub(s.clock.Now()), func() {
		s.expire(current.Token)
	})
	listeners := s.listenersLocked()
	s.mu.Unlock()

	slog.Info("Session started", "session_id", session.ID, "expires_at", session.ExpiresAt)
	notify(listeners, session)
}

func (s *Service) expire(token string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.current == nil || s.current.Token != token {
		s.mu.Unlock()
		return
	}
	slog.Info("Session expired", "session_id", s.current.ID)
	s.clearLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, nil)
}

func (s *Service) clearLocked() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	s.current = nil
}

func (s *Service) listenersLocked() []func(*domain.Session) {
	listeners := make([]func(*domain.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func notify(listeners []func(*domain.Session), session *domain.Session) {
	for _, fn := range listeners {
		if session == nil {
			fn(nil)
			continue
		}
		copied := *session
		fn(&copied)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
