package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/felle787/LocalRadar2/internal/app"
	"github.com/felle787/LocalRadar2/internal/domain"
	apperrors "github.com/felle787/LocalRadar2/internal/platform/errors"
)

const defaultNearbyRadiusKm = 5.0

func (s *Server) registerAPIRoutes(requireSession echo.MiddlewareFunc) {
	s.echo.GET("/venues", s.handleListVenues, requireSession)
	s.echo.GET("/venues/nearby", s.handleNearbyVenues, requireSession)
	s.echo.GET("/venues/map", s.handleMapMarkers, requireSession)
	s.echo.GET("/venue", s.handleMyVenue, requireSession)
	s.echo.PUT("/venue", s.handleSaveVenue, requireSession)

	s.echo.POST("/venues/:id/follow", s.handleFollow, requireSession)
	s.echo.DELETE("/venues/:id/follow", s.handleUnfollow, requireSession)
	s.echo.POST("/venues/:id/favorite", s.handleAddFavorite, requireSession)
	s.echo.DELETE("/venues/:id/favorite", s.handleRemoveFavorite, requireSession)

	s.echo.GET("/events/mine", s.handleMyEvents, requireSession)
	s.echo.POST("/events", s.handlePostEvent, requireSession)
	s.echo.DELETE("/events/:id", s.handleDeleteEvent, requireSession)
	s.echo.GET("/feed", s.handleFeed, requireSession)

	s.echo.GET("/profile/overview", s.handleProfileOverview, requireSession)
}

func (s *Server) handleListVenues(c echo.Context) error {
	venues, err := s.app.ListVenues(s.withSession(c))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"venues": nonNil(venues)})
}

func (s *Server) handleNearbyVenues(c echo.Context) error {
	lat, err := floatParam(c, "lat", nil)
	if err != nil {
		return err
	}
	lon, err := floatParam(c, "lon", nil)
	if err != nil {
		return err
	}
	radius := defaultNearbyRadiusKm
	radius, err = floatParam(c, "radius", &radius)
	if err != nil {
		return err
	}

	venues, err := s.app.NearbyVenues(s.withSession(c), lat, lon, radius)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"venues": nonNil(venues)})
}

func (s *Server) handleMapMarkers(c echo.Context) error {
	markers, err := s.app.MapMarkers(s.withSession(c))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"markers": nonNil(markers)})
}

func (s *Server) handleMyVenue(c echo.Context) error {
	venue, err := s.app.MyVenue(s.withSession(c))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, venue)
}

func (s *Server) handleSaveVenue(c echo.Context) error {
	var input app.VenueInput
	if err := c.Bind(&input); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	result, err := s.app.SaveVenue(s.withSession(c), input)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, result)
}

func (s *Server) handleFollow(c echo.Context) error {
	return s.respondProfile(c, s.app.FollowVenue)
}

func (s *Server) handleUnfollow(c echo.Context) error {
	return s.respondProfile(c, s.app.UnfollowVenue)
}

func (s *Server) handleAddFavorite(c echo.Context) error {
	return s.respondProfile(c, s.app.AddFavorite)
}

func (s *Server) handleRemoveFavorite(c echo.Context) error {
	return s.respondProfile(c, s.app.RemoveFavorite)
}

func (s *Server) handleMyEvents(c echo.Context) error {
	events, err := s.app.MyEvents(s.withSession(c))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"events": nonNil(events)})
}

func (s *Server) handlePostEvent(c echo.Context) error {
	var input app.EventInput
	if err := c.Bind(&input); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	event, err := s.app.PostEvent(s.withSession(c), input)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, event)
}

func (s *Server) handleDeleteEvent(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid event id").WithContext("field", "id")
	}

	if err := s.app.DeleteEvent(s.withSession(c), eventID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleFeed(c echo.Context) error {
	feed, err := s.app.Feed(s.withSession(c))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, feed)
}

func (s *Server) handleProfileOverview(c echo.Context) error {
	overview, err := s.app.ProfileOverview(s.withSession(c))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, overview)
}

type profileMutation func(ctx context.Context, venueID string) (*domain.Profile, error)

func (s *Server) respondProfile(c echo.Context, mutate profileMutation) error {
	profile, err := mutate(s.withSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"profile": profile})
}

// floatParam parses a query parameter. A nil fallback makes the parameter required.
func floatParam(c echo.Context, name string, fallback *float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		if fallback != nil {
			return *fallback, nil
		}
		return 0, apperrors.ValidationError(name+" is required").WithContext("field", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.ValidationError(name+" must be a number").WithContext("field", name)
	}
	return v, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
