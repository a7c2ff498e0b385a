package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/felle787/LocalRadar2/internal/domain"
)

type VenueInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Address     string `json:"address" validate:"required,max=240"`
	Location    string `json:"location" validate:"max=120"`
	Type        string `json:"type" validate:"max=60"`
	Categories  string `json:"categories" validate:"max=500"`
	Description string `json:"description" validate:"max=2000"`
}

type SaveVenueResult struct {
	Venue    domain.Venue `json:"venue"`
	Geocoded bool         `json:"geocoded"`
}

// SaveVenue creates or replaces the signed-in business's venue. A failed geocoding
// lookup does not fail the save; the venue is stored without coordinates.
func (s *Service) SaveVenue(ctx context.Context, input VenueInput) (*SaveVenueResult, error) {
	sess, _, err := s.business()
	if err != nil {
		return nil, err
	}

	input = trimVenueInput(input)
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()

	venue := domain.Venue{
		OwnerID:     sess.ID,
		Name:        input.Name,
		Address:     input.Address,
		Location:    input.Location,
		Type:        input.Type,
		Categories:  splitCategories(input.Categories),
		Description: input.Description,
	}
	if venue.Type == "" {
		venue.Type = domain.DefaultVenueType
	}

	coords, err := s.geocoder.Geocode(ctx, geocodeQuery(input.Address, input.Location))
	if err != nil {
		slog.WarnContext(ctx, "Venue saved without coordinates", "session_id", sess.ID, "error", err)
	} else {
		venue.Coordinates = &coords
	}

	saved, err := s.venues.Upsert(ctx, venue)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("venue save timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to save venue: %w", err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateVenue(ctx, sess.ID); err != nil {
			slog.WarnContext(ctx, "Failed to invalidate venue cache", "session_id", sess.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Venue saved", "session_id", sess.ID, "geocoded", saved.Coordinates != nil)
	return &SaveVenueResult{Venue: *saved, Geocoded: saved.Coordinates != nil}, nil
}

// MyVenue returns the signed-in business's venue, or domain.ErrVenueNotFound.
func (s *Service) MyVenue(ctx context.Context) (*domain.Venue, error) {
	sess, _, err := s.business()
	if err != nil {
		return nil, err
	}
	return s.venueSource.GetVenue(ctx, sess.ID)
}

func (s *Service) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	if _, _, err := s.actor(); err != nil {
		return nil, err
	}
	return s.venues.List(ctx)
}

type NearbyVenue struct {
	domain.Venue
	DistanceKm float64 `json:"distanceKm"`
}

// NearbyVenues returns venues with coordinates within radiusKm of the point, nearest first.
func (s *Service) NearbyVenues(ctx context.Context, lat, lon, radiusKm float64) ([]NearbyVenue, error) {
	if _, _, err := s.actor(); err != nil {
		return nil, err
	}
	origin := domain.Coordinates{Latitude: lat, Longitude: lon}
	if err := validateCoordinates(origin); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		return nil, newValidationError("radius", "must be positive")
	}

	venues, err := s.venues.List(ctx)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyVenue, 0, len(venues))
	for _, v := range venues {
		if v.Coordinates == nil {
			continue
		}
		d := distanceKm(origin, *v.Coordinates)
		if d <= radiusKm {
			nearby = append(nearby, NearbyVenue{Venue: v, DistanceKm: d})
		}
	}
	slices.SortStableFunc(nearby, func(a, b NearbyVenue) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		default:
			return 0
		}
	})
	return nearby, nil
}

type MapMarker struct {
	VenueID     string             `json:"venueId"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Coordinates domain.Coordinates `json:"coordinates"`
}

// MapMarkers returns one marker per venue that has coordinates.
func (s *Service) MapMarkers(ctx context.Context) ([]MapMarker, error) {
	if _, _, err := s.actor(); err != nil {
		return nil, err
	}

	venues, err := s.venues.List(ctx)
	if err != nil {
		return nil, err
	}

	markers := make([]MapMarker, 0, len(venues))
	for _, v := range venues {
		if v.Coordinates == nil {
			continue
		}
		markers = append(markers, MapMarker{VenueID: v.OwnerID, Name: v.Name, Type: v.Type, Coordinates: *v.Coordinates})
	}
	return markers, nil
}

func trimVenueInput(in VenueInput) VenueInput {
	return VenueInput{
		Name:        strings.TrimSpace(in.Name),
		Address:     strings.TrimSpace(in.Address),
		Location:    strings.TrimSpace(in.Location),
		Type:        strings.TrimSpace(in.Type),
		Categories:  in.Categories,
		Description: strings.TrimSpace(in.Description),
	}
}

// splitCategories splits a comma-separated list, dropping blanks and duplicates.
func splitCategories(raw string) []string {
	categories := []string{}
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !slices.Contains(categories, part) {
			categories = append(categories, part)
		}
	}
	return categories
}

func geocodeQuery(address, location string) string {
	if location == "" {
		return address
	}
	return address + ", " + location
}
