package domain

import (
	"context"
	"time"
)

const DefaultVenueType = "Bar"

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Venue is a business owner's venue profile. One venue per owner, keyed by the owner's ID.
type Venue struct {
	OwnerID     string       `json:"ownerId"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Location    string       `json:"location"`
	Type        string       `json:"type"`
	Categories  []string     `json:"categories"`
	Description string       `json:"description"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type VenueRepository interface {
	Get(ctx context.Context, ownerID string) (*Venue, error)
	List(ctx context.Context) ([]Venue, error)
	Upsert(ctx context.Context, venue Venue) (*Venue, error)
	Count(ctx context.Context) (int, error)
}

// VenueSource provides venue lookup with caching.
type VenueSource interface {
	GetVenue(ctx context.Context, ownerID string) (*Venue, error)
}

// VenueCacheInvalidator evicts a venue from every cache layer and every instance.
type VenueCacheInvalidator interface {
	InvalidateVenue(ctx context.Context, ownerID string) error
}

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}
