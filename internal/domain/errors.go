package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrVenueNotFound        = errors.New("venue not found")
	ErrVenueRequired        = errors.New("venue must be set up before posting events")
	ErrEventNotFound        = errors.New("event not found")
	ErrNotSignedIn          = errors.New("not signed in")
	ErrProfileNotReady      = errors.New("profile not ready")
	ErrRoleNotAllowed       = errors.New("operation not allowed for this role")
	ErrBusinessCannotFollow = errors.New("business accounts cannot follow venues")
	ErrNoGeocodeResult      = errors.New("no geocoding result")
	ErrInvalidRole          = errors.New("invalid role")
)

type IdentityErrorCode string

const (
	IdentityInvalidCredentials IdentityErrorCode = "invalid_credentials"
	IdentityEmailTaken         IdentityErrorCode = "email_taken"
	IdentityWeakPassword       IdentityErrorCode = "weak_password"
	IdentityInvalidEmail       IdentityErrorCode = "invalid_email"
	IdentityInvalidToken       IdentityErrorCode = "invalid_token"
	IdentityUnavailable        IdentityErrorCode = "unavailable"
)

// IdentityError is returned by the identity service for rejected or failed auth requests.
type IdentityError struct {
	Code IdentityErrorCode
	Err  error
}

func NewIdentityError(code IdentityErrorCode, err error) *IdentityError {
	return &IdentityError{Code: code, Err: err}
}

func (e *IdentityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("identity: %s", e.Code)
}

func (e *IdentityError) Unwrap() error { return e.Err }

// StoreError is returned by the profile store for failed reads, subscriptions and writes.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsIdentityError reports whether err carries an IdentityError with the given code.
func IsIdentityError(err error, code IdentityErrorCode) bool {
	var identityErr *IdentityError
	return errors.As(err, &identityErr) && identityErr.Code == code
}
