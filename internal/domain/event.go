package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is posted by a venue owner and shown in the venue's list and the global feed.
type Event struct {
	ID            uuid.UUID `json:"id"`
	VenueID       string    `json:"venueId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	VenueName     string    `json:"venueName"`
	VenueAddress  string    `json:"venueAddress"`
	VenueLocation string    `json:"venueLocation"`
	CreatedAt     time.Time `json:"createdAt"`
}

type EventRepository interface {
	Create(ctx context.Context, event Event) (*Event, error)
	Delete(ctx context.Context, venueID string, eventID uuid.UUID) error
	ListByVenue(ctx context.Context, venueID string) ([]Event, error)
	ListLatest(ctx context.Context, limit int) ([]Event, error)
}
