package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/felle787/LocalRadar2/internal/domain"
)

type EventInput struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"required,max=2000"`
	Date        string `json:"date" validate:"required,max=40"`
	Time        string `json:"time" validate:"max=40"`
}

// PostEvent publishes an event for the signed-in business's venue. The venue's name,
// address and location are copied onto the event.
func (s *Service) PostEvent(ctx context.Context, input EventInput) (*domain.Event, error) {
	sess, _, err := s.business()
	if err != nil {
		return nil, err
	}

	input = EventInput{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Date:        strings.TrimSpace(input.Date),
		Time:        strings.TrimSpace(input.Time),
	}
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}

	venue, err := s.venueSource.GetVenue(ctx, sess.ID)
	if errors.Is(err, domain.ErrVenueNotFound) {
		return nil, domain.ErrVenueRequired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load venue: %w", err)
	}

	event, err := s.events.Create(ctx, domain.Event{
		VenueID:       sess.ID,
		Title:         input.Title,
		Description:   input.Description,
		Date:          input.Date,
		Time:          input.Time,
		VenueName:     venue.Name,
		VenueAddress:  venue.Address,
		VenueLocation: venue.Location,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Event posted", "session_id", sess.ID, "event_id", event.ID)
	return event, nil
}

// DeleteEvent removes one of the signed-in business's own events.
func (s *Service) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	sess, _, err := s.business()
	if err != nil {
		return err
	}
	if err := s.events.Delete(ctx, sess.ID, eventID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Event deleted", "session_id", sess.ID, "event_id", eventID)
	return nil
}

// MyEvents lists the signed-in business's events, newest first.
func (s *Service) MyEvents(ctx context.Context) ([]domain.Event, error) {
	sess, _, err := s.business()
	if err != nil {
		return nil, err
	}
	return s.events.ListByVenue(ctx, sess.ID)
}

type Feed struct {
	Role           domain.Role    `json:"role"`
	FollowedVenues []domain.Venue `json:"followedVenues,omitempty"`
	Events         []domain.Event `json:"events,omitempty"`
	Discover       []domain.Venue `json:"discover,omitempty"`
}

// Feed returns the home screen content. Customers see their followed venues and the
// newest events; businesses see a short list of venues for discovery.
func (s *Service) Feed(ctx context.Context) (*Feed, error) {
	_, profile, err := s.actor()
	if err != nil {
		return nil, err
	}

	if profile.Role == domain.RoleBusiness {
		venues, err := s.venues.List(ctx)
		if err != nil {
			return nil, err
		}
		return &Feed{Role: profile.Role, Discover: venues[:min(len(venues), discoveryLimit)]}, nil
	}

	followed, err := s.lookupVenues(ctx, profile.FollowedVenues)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListLatest(ctx, feedEventLimit)
	if err != nil {
		return nil, err
	}
	return &Feed{Role: profile.Role, FollowedVenues: followed, Events: events}, nil
}
