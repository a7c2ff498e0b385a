package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felle787/LocalRadar2/internal/domain"
)

// eventColumns must match the Scan order in scanEvent.
const eventColumns = `id, venue_id, title, description, date, time, venue_name, venue_address, venue_location, created_at`

type EventRepo struct {
	pool *pgxpool.Pool
}

var _ domain.EventRepository = (*EventRepo)(nil)

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Create(ctx context.Context, e domain.Event) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO events (venue_id, title, description, date, time, venue_name, venue_address, venue_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+eventColumns,
		e.VenueID, e.Title, e.Description, e.Date, e.Time, e.VenueName, e.VenueAddress, e.VenueLocation)

	event, err := scanEvent(row)
	if isPgError(err, foreignKeyViolation) {
		return nil, domain.ErrVenueRequired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

// Delete removes an event owned by venueID. Events of other venues are reported as not found.
func (r *EventRepo) Delete(ctx context.Context, venueID string, eventID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1 AND venue_id = $2`, eventID, venueID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *EventRepo) ListByVenue(ctx context.Context, venueID string) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE venue_id = $1 ORDER BY created_at DESC, id`, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list venue events: %w", err)
	}
	return collectEvents(rows)
}

func (r *EventRepo) ListLatest(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Event, error) {
		e, err := scanEvent(row)
		if err != nil {
			return domain.Event{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.VenueID, &e.Title, &e.Description, &e.Date, &e.Time,
		&e.VenueName, &e.VenueAddress, &e.VenueLocation, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
