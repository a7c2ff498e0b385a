package domain

import (
	"context"
	"slices"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleBusiness Role = "business"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleBusiness
}

// BootstrapStatus is the user-facing progress text of the profile bootstrap.
type BootstrapStatus string

const (
	StatusIdle           BootstrapStatus = ""
	StatusLoading        BootstrapStatus = "Loading profile..."
	StatusCreating       BootstrapStatus = "Creating profile..."
	StatusSlowConnection BootstrapStatus = "Connection slow, creating profile..."
)

// Profile is the application-level user record stored at users/{sessionID}.
type Profile struct {
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	FollowedVenues []string  `json:"followedVenues"`
	FavoriteVenues []string  `json:"favoriteVenues"`
}

// NewProfile returns a profile with empty follow/favorite sets.
func NewProfile(email string, role Role, createdAt time.Time) Profile {
	return Profile{
		Email:          email,
		Role:           role,
		CreatedAt:      createdAt.UTC(),
		FollowedVenues: []string{},
		FavoriteVenues: []string{},
	}
}

// Clone returns a deep copy. Nil sets are normalized to empty ones.
func (p Profile) Clone() Profile {
	c := p
	c.FollowedVenues = cloneSet(p.FollowedVenues)
	c.FavoriteVenues = cloneSet(p.FavoriteVenues)
	return c
}

func (p Profile) Follows(venueID string) bool {
	return slices.Contains(p.FollowedVenues, venueID)
}

func (p Profile) HasFavorite(venueID string) bool {
	return slices.Contains(p.FavoriteVenues, venueID)
}

func cloneSet(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// ProfilePath is the store key path of a session's profile record.
func ProfilePath(sessionID string) string {
	return "users/" + sessionID
}

// ProfileEvent is one delivery of a profile observation.
// Profile == nil && Err == nil means there is no record at the path.
type ProfileEvent struct {
	Profile *Profile
	Err     error
}

func (e ProfileEvent) NotFound() bool {
	return e.Profile == nil && e.Err == nil
}

// ProfileStore is the key-path addressable profile store.
//
// Observe delivers the current value first and every change afterwards until ctx is
// cancelled, at which point the channel is closed.
type ProfileStore interface {
	Read(ctx context.Context, sessionID string) (*Profile, error)
	Observe(ctx context.Context, sessionID string) (<-chan ProfileEvent, error)
	Write(ctx context.Context, sessionID string, profile Profile) error
	WriteIfAbsent(ctx context.Context, sessionID string, profile Profile) (bool, error)
}
