package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventbooking/internal/domain"
)

type eventRegistrationRepository struct {
	DB *sql.DB
}

func NewEventRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &eventRegistrationRepository{
		DB: db,
	}
}

const registrationColumns = `id, event_id, user_id, status, position_in_queue, notes, registered_at, updated_at`

func (r *eventRegistrationRepository) Create(ctx context.Context, reg *domain.EventRegistration) error {
	query := `
		INSERT INTO event_registrations (id, event_id, user_id, status, position_in_queue, notes, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q(ctx, r.DB).ExecContext(ctx, query,
		reg.ID, reg.EventID, reg.UserID, reg.Status, reg.PositionInQueue, reg.Notes, reg.RegisteredAt, reg.UpdatedAt,
	)
	return err
}

func (r *eventRegistrationRepository) GetByID(ctx context.Context, id string) (*domain.EventRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE id = $1`
	return scanRegistration(q(ctx, r.DB).QueryRowContext(ctx, query, id))
}

func (r *eventRegistrationRepository) GetActiveByEventAndUser(ctx context.Context, eventID, userID string) (*domain.EventRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM event_registrations
		WHERE event_id = $1 AND user_id = $2 AND status <> 'cancelled'
	`
	return scanRegistration(q(ctx, r.DB).QueryRowContext(ctx, query, eventID, userID))
}

func scanRegistration(row *sql.Row) (*domain.EventRegistration, error) {
	reg := &domain.EventRegistration{}
	var position sql.NullInt64
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &position, &reg.Notes, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if position.Valid {
		p := int(position.Int64)
		reg.PositionInQueue = &p
	}
	return reg, nil
}

func (r *eventRegistrationRepository) Update(ctx context.Context, reg *domain.EventRegistration) error {
	query := `
		UPDATE event_registrations
		SET status = $1, position_in_queue = $2, notes = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := q(ctx, r.DB).ExecContext(ctx, query,
		reg.Status, reg.PositionInQueue, reg.Notes, reg.UpdatedAt, reg.ID,
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

// ListWaitlistedByEvent returns the waitlist in promotion order. Assigned
// positions come first; rows whose position was never assigned sort last by
// registration time (FIFO), so renumbering gives them a rank.
func (r *eventRegistrationRepository) ListWaitlistedByEvent(ctx context.Context, eventID string) ([]*domain.EventRegistration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM event_registrations
		WHERE event_id = $1 AND status = 'waitlisted'
		ORDER BY position_in_queue ASC NULLS LAST, registered_at ASC
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*domain.EventRegistration, 0)
	for rows.Next() {
		reg := &domain.EventRegistration{}
		var position sql.NullInt64
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &position, &reg.Notes, &reg.RegisteredAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		if position.Valid {
			p := int(position.Int64)
			reg.PositionInQueue = &p
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *eventRegistrationRepository) CountByEventAndStatus(ctx context.Context, eventID string, status domain.RegistrationStatus) (int, error) {
	query := `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND status = $2`
	var count int
	if err := q(ctx, r.DB).QueryRowContext(ctx, query, eventID, string(status)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *eventRegistrationRepository) NextWaitlistPosition(ctx context.Context, eventID string) (int, error) {
	count, err := r.CountByEventAndStatus(ctx, eventID, domain.RegistrationStatusWaitlisted)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (r *eventRegistrationRepository) ListByEvent(ctx context.Context, eventID string, status *domain.RegistrationStatus, p domain.PaginationParams) ([]*domain.EventRegistration, int, error) {
	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}
	countQuery := `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND ($2::text IS NULL OR status = $2)`
	var total int
	if err := q(ctx, r.DB).QueryRowContext(ctx, countQuery, eventID, statusArg).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + registrationColumns + `
		FROM event_registrations
		WHERE event_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY registered_at ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := q(ctx, r.DB).QueryContext(ctx, query, eventID, statusArg, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	regs := make([]*domain.EventRegistration, 0)
	for rows.Next() {
		reg := &domain.EventRegistration{}
		var position sql.NullInt64
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &position, &reg.Notes, &reg.RegisteredAt, &reg.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if position.Valid {
			pos := int(position.Int64)
			reg.PositionInQueue = &pos
		}
		regs = append(regs, reg)
	}
	return regs, total, rows.Err()
}

func (r *eventRegistrationRepository) DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM event_registrations WHERE status = 'cancelled' AND updated_at < $1`
	result, err := q(ctx, r.DB).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
