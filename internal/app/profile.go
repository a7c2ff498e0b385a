package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/felle787/LocalRadar2/internal/domain"
)

func (s *Service) FollowVenue(ctx context.Context, venueID string) (*domain.Profile, error) {
	return s.updateFollow(ctx, venueID, true)
}

func (s *Service) UnfollowVenue(ctx context.Context, venueID string) (*domain.Profile, error) {
	return s.updateFollow(ctx, venueID, false)
}

// ToggleFollow flips the follow state of venueID and reports the new state.
func (s *Service) ToggleFollow(ctx context.Context, venueID string) (bool, *domain.Profile, error) {
	_, profile, err := s.actor()
	if err != nil {
		return false, nil, err
	}
	follow := !profile.Follows(venueID)
	updated, err := s.updateFollow(ctx, venueID, follow)
	if err != nil {
		return false, nil, err
	}
	return follow, updated, nil
}

// AddFavorite marks venueID as a favorite. Venues already favorited are returned as-is
// without a store write, even if the venue has since been removed.
func (s *Service) AddFavorite(ctx context.Context, venueID string) (*domain.Profile, error) {
	_, profile, err := s.actor()
	if err != nil {
		return nil, err
	}
	if profile.HasFavorite(venueID) {
		return &profile, nil
	}
	if err := s.requireVenue(ctx, venueID); err != nil {
		return nil, err
	}
	return s.mutateProfile(ctx, func(p *domain.Profile) {
		p.FavoriteVenues = addToSet(p.FavoriteVenues, venueID)
	})
}

func (s *Service) RemoveFavorite(ctx context.Context, venueID string) (*domain.Profile, error) {
	return s.mutateProfile(ctx, func(p *domain.Profile) {
		p.FavoriteVenues = removeFromSet(p.FavoriteVenues, venueID)
	})
}

type ProfileOverview struct {
	Profile        domain.Profile `json:"profile"`
	FollowedVenues []domain.Venue `json:"followedVenues"`
	FavoriteVenues []domain.Venue `json:"favoriteVenues"`
	TotalVenues    int            `json:"totalVenues"`
}

func (s *Service) ProfileOverview(ctx context.Context) (*ProfileOverview, error) {
	_, profile, err := s.actor()
	if err != nil {
		return nil, err
	}

	followed, err := s.lookupVenues(ctx, profile.FollowedVenues)
	if err != nil {
		return nil, err
	}
	favorites, err := s.lookupVenues(ctx, profile.FavoriteVenues)
	if err != nil {
		return nil, err
	}
	total, err := s.venues.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ProfileOverview{
		Profile:        profile,
		FollowedVenues: followed,
		FavoriteVenues: favorites,
		TotalVenues:    total,
	}, nil
}

func (s *Service) updateFollow(ctx context.Context, venueID string, follow bool) (*domain.Profile, error) {
	_, profile, err := s.actor()
	if err != nil {
		return nil, err
	}
	if profile.Role == domain.RoleBusiness {
		return nil, domain.ErrBusinessCannotFollow
	}

	if !follow {
		return s.mutateProfile(ctx, func(p *domain.Profile) {
			p.FollowedVenues = removeFromSet(p.FollowedVenues, venueID)
		})
	}

	if err := s.requireVenue(ctx, venueID); err != nil {
		return nil, err
	}
	return s.mutateProfile(ctx, func(p *domain.Profile) {
		p.FollowedVenues = addToSet(p.FollowedVenues, venueID)
	})
}

func (s *Service) requireVenue(ctx context.Context, venueID string) error {
	if venueID == "" {
		return newValidationError("venueId", "is required")
	}
	if _, err := s.venueSource.GetVenue(ctx, venueID); err != nil {
		return err
	}
	return nil
}

// mutateProfile applies fn to the stored profile record and writes it back. The stored
// record is preferred over the in-memory snapshot; the session manager picks up the
// write as a live update.
func (s *Service) mutateProfile(ctx context.Context, fn func(*domain.Profile)) (*domain.Profile, error) {
	sess, current, err := s.actor()
	if err != nil {
		return nil, err
	}

	s.profileMu.Lock()
	defer s.profileMu.Unlock()

	stored, err := s.profiles.Read(ctx, sess.ID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		stored = &current
	case err != nil:
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	updated := stored.Clone()
	fn(&updated)
	if err := s.profiles.Write(ctx, sess.ID, updated); err != nil {
		return nil, fmt.Errorf("failed to write profile: %w", err)
	}

	slog.DebugContext(ctx, "Profile updated", "session_id", sess.ID,
		"followed", len(updated.FollowedVenues), "favorites", len(updated.FavoriteVenues))
	return &updated, nil
}

func addToSet(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	return append(set, id)
}

func removeFromSet(set []string, id string) []string {
	return slices.DeleteFunc(set, func(v string) bool { return v == id })
}
