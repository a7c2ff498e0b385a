package domain

import (
	"context"
	"time"
)

// Session is an authenticated identity handle issued by the IdentityService.
type Session struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// IdentityService issues and terminates sessions and reports session changes.
// Listeners receive nil when the session ends (sign-out or invalidation).
type IdentityService interface {
	CreateSession(ctx context.Context, email, password string) (Session, error)
	Authenticate(ctx context.Context, email, password string) (Session, error)
	TerminateSession(ctx context.Context) error
	OnSessionChange(fn func(*Session)) (unsubscribe func())
}
