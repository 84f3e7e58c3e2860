package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventbooking/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

// eventColumns is the select list shared by the read queries. confirmed_count
// is derived from the registrations table so Event.IsFull works on a freshly
// loaded aggregate.
const eventColumns = `
	e.id, e.name, e.description, e.start_time, e.end_time, e.timezone, e.location,
	e.capacity, e.published, e.organizer_id, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM event_registrations r
		WHERE r.event_id = e.id AND r.status = 'confirmed') AS confirmed_count
`

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (name, description, start_time, end_time, timezone, location, capacity, published, organizer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	return q(ctx, r.DB).QueryRowContext(ctx, query,
		e.Name, e.Description, e.StartTime, e.EndTime, e.Timezone, e.Location,
		e.Capacity, e.Published, e.OrganizerID, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`
	return r.scanOne(q(ctx, r.DB).QueryRowContext(ctx, query, id))
}

func (r *eventRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1 FOR UPDATE OF e`
	return r.scanOne(q(ctx, r.DB).QueryRowContext(ctx, query, id))
}

func (r *eventRepository) scanOne(row *sql.Row) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.StartTime, &e.EndTime, &e.Timezone, &e.Location,
		&e.Capacity, &e.Published, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt,
		&e.ConfirmedCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	query := `
		UPDATE events
		SET name = $1, description = $2, start_time = $3, end_time = $4, timezone = $5,
			location = $6, capacity = $7, published = $8, updated_at = $9
		WHERE id = $10
	`
	result, err := q(ctx, r.DB).ExecContext(ctx, query,
		e.Name, e.Description, e.StartTime, e.EndTime, e.Timezone,
		e.Location, e.Capacity, e.Published, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) ListPublished(ctx context.Context, p domain.PaginationParams) ([]*domain.Event, int, error) {
	var total int
	if err := q(ctx, r.DB).QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE published = TRUE`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + `
		FROM events e
		WHERE e.published = TRUE
		ORDER BY e.start_time
		LIMIT $1 OFFSET $2
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e := &domain.Event{}
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.StartTime, &e.EndTime, &e.Timezone, &e.Location,
			&e.Capacity, &e.Published, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt,
			&e.ConfirmedCount,
		); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

func (r *eventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events e
		WHERE e.organizer_id = $1
		ORDER BY e.created_at DESC
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e := &domain.Event{}
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.StartTime, &e.EndTime, &e.Timezone, &e.Location,
			&e.Capacity, &e.Published, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt,
			&e.ConfirmedCount,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`
	result, err := q(ctx, r.DB).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
