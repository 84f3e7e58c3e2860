package postgres

import (
	"context"
	"database/sql"
	"time"

	"eventbooking/internal/domain"
)

type outboxRepository struct {
	DB *sql.DB
}

func NewOutboxRepository(db *sql.DB) domain.OutboxRepository {
	return &outboxRepository{
		DB: db,
	}
}

const outboxColumns = `id, event_type, payload, occurred_at, created_at, status, retry_count, last_error, next_attempt_at, claimed_by, claimed_at`

func (r *outboxRepository) Insert(ctx context.Context, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, event_type, payload, occurred_at, created_at, status, retry_count, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q(ctx, r.DB).ExecContext(ctx, query,
		msg.ID, msg.EventType, []byte(msg.Payload), msg.OccurredAt, msg.CreatedAt, msg.Status, msg.RetryCount, msg.NextAttemptAt,
	)
	return err
}

// ClaimPending flips due pending rows to processing and stamps the claim in
// one statement. SKIP LOCKED keeps concurrent workers from blocking on each
// other's claims; the claim itself is what prevents double publishing.
func (r *outboxRepository) ClaimPending(ctx context.Context, workerID string, limit int, now time.Time) ([]*domain.OutboxMessage, error) {
	query := `
		UPDATE outbox_messages
		SET status = 'processing', claimed_by = $1, claimed_at = $2
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = 'pending' AND next_attempt_at <= $2
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := q(ctx, r.DB).QueryContext(ctx, query, workerID, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]*domain.OutboxMessage, 0)
	for rows.Next() {
		msg := &domain.OutboxMessage{}
		var lastError, claimedBy sql.NullString
		var claimedAt sql.NullTime
		var payload []byte
		if err := rows.Scan(
			&msg.ID, &msg.EventType, &payload, &msg.OccurredAt, &msg.CreatedAt,
			&msg.Status, &msg.RetryCount, &lastError, &msg.NextAttemptAt,
			&claimedBy, &claimedAt,
		); err != nil {
			return nil, err
		}
		msg.Payload = payload
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		if claimedBy.Valid {
			msg.ClaimedBy = &claimedBy.String
		}
		if claimedAt.Valid {
			msg.ClaimedAt = &claimedAt.Time
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE outbox_messages
		SET status = 'processed', claimed_by = NULL, claimed_at = NULL
		WHERE id = $1
	`
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

func (r *outboxRepository) Reschedule(ctx context.Context, id string, retryCount int, lastError string, nextAttemptAt time.Time) error {
	query := `
		UPDATE outbox_messages
		SET status = 'pending', retry_count = $1, last_error = $2, next_attempt_at = $3,
			claimed_by = NULL, claimed_at = NULL
		WHERE id = $4
	`
	result, err := q(ctx, r.DB).ExecContext(ctx, query, retryCount, lastError, nextAttemptAt, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) MarkDead(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE outbox_messages
		SET status = 'failed', last_error = $1, claimed_by = NULL, claimed_at = NULL
		WHERE id = $2
	`
	result, err := q(ctx, r.DB).ExecContext(ctx, query, lastError, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM outbox_messages WHERE status = 'processed' AND created_at < $1`
	result, err := q(ctx, r.DB).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
