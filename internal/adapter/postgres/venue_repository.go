package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felle787/LocalRadar2/internal/domain"
)

// venueColumns must match the Scan order in scanVenue.
const venueColumns = `owner_id, name, address, location, type, categories, description, latitude, longitude, created_at, updated_at`

type VenueRepo struct {
	pool *pgxpool.Pool
}

var _ domain.VenueRepository = (*VenueRepo)(nil)

func NewVenueRepo(pool *pgxpool.Pool) *VenueRepo {
	return &VenueRepo{pool: pool}
}

func (r *VenueRepo) Get(ctx context.Context, ownerID string) (*domain.Venue, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE owner_id = $1`, ownerID)
	venue, err := scanVenue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVenueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return venue, nil
}

func (r *VenueRepo) List(ctx context.Context) ([]domain.Venue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY created_at, owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}

	venues, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Venue, error) {
		v, err := scanVenue(row)
		if err != nil {
			return domain.Venue{}, err
		}
		return *v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan venues: %w", err)
	}
	return venues, nil
}

// Upsert creates or replaces the owner's venue. created_at survives updates.
func (r *VenueRepo) Upsert(ctx context.Context, v domain.Venue) (*domain.Venue, error) {
	var lat, lon *float64
	if v.Coordinates != nil {
		lat, lon = &v.Coordinates.Latitude, &v.Coordinates.Longitude
	}
	categories := v.Categories
	if categories == nil {
		categories = []string{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO venues (owner_id, name, address, location, type, categories, description, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			location = EXCLUDED.location,
			type = EXCLUDED.type,
			categories = EXCLUDED.categories,
			description = EXCLUDED.description,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()
		RETURNING `+venueColumns,
		v.OwnerID, v.Name, v.Address, v.Location, v.Type, categories, v.Description, lat, lon)

	venue, err := scanVenue(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert venue: %w", err)
	}
	return venue, nil
}

func (r *VenueRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM venues`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count venues: %w", err)
	}
	return n, nil
}

func scanVenue(row pgx.Row) (*domain.Venue, error) {
	var (
		v        domain.Venue
		lat, lon *float64
	)
	err := row.Scan(&v.OwnerID, &v.Name, &v.Address, &v.Location, &v.Type, &v.Categories,
		&v.Description, &lat, &lon, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		v.Coordinates = &domain.Coordinates{Latitude: *lat, Longitude: *lon}
	}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	return &v, nil
}
