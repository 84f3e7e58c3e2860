package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	// OutboxStatusPending means the message awaits publication (or a retry).
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusProcessing means a worker has claimed the message.
	OutboxStatusProcessing OutboxStatus = "processing"
	// OutboxStatusProcessed means the message reached the external queue.
	OutboxStatusProcessed OutboxStatus = "processed"
	// OutboxStatusFailed is terminal: retries were exhausted and the message
	// is parked for manual remediation (dead letter).
	OutboxStatusFailed OutboxStatus = "failed"
)

// OutboxMessage is a durable record of one domain event awaiting external
// delivery. It is written in the same transaction as the aggregate mutation
// that produced the event, so the two succeed or fail together.
type OutboxMessage struct {
	ID            string
	EventType     string
	Payload       json.RawMessage
	OccurredAt    time.Time
	CreatedAt     time.Time
	Status        OutboxStatus
	RetryCount    int
	LastError     *string
	NextAttemptAt time.Time
	ClaimedBy     *string
	ClaimedAt     *time.Time
}

// NewOutboxMessage serializes a domain event into a pending outbox message.
func NewOutboxMessage(ev DomainEvent, now time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.EventType(), err)
	}
	return &OutboxMessage{
		ID:            uuid.NewString(),
		EventType:     ev.EventType(),
		Payload:       payload,
		OccurredAt:    ev.OccurredAt(),
		CreatedAt:     now,
		Status:        OutboxStatusPending,
		NextAttemptAt: now,
	}, nil
}

// OutboxEnvelope is the wire format published to the external queue.
// Consumers must tolerate unknown eventType values by acking and dropping the
// message rather than failing the batch.
type OutboxEnvelope struct {
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// OutboxRepository defines storage operations for outbox messages. Insert
// participates in the caller's transaction; the remaining operations are used
// only by the outbox processor.
type OutboxRepository interface {
	Insert(ctx context.Context, msg *OutboxMessage) error
	// ClaimPending atomically claims up to limit due pending messages for the
	// given worker, flipping them to processing. Ordered oldest first.
	ClaimPending(ctx context.Context, workerID string, limit int, now time.Time) ([]*OutboxMessage, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
	// Reschedule returns a claimed message to pending with an incremented
	// retry count and the next attempt time per the backoff schedule.
	Reschedule(ctx context.Context, id string, retryCount int, lastError string, nextAttemptAt time.Time) error
	// MarkDead parks a message in the terminal failed status once retries are
	// exhausted.
	MarkDead(ctx context.Context, id string, lastError string) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueuePublisher publishes outbox envelopes to the external transport, keyed
// by event type. Implementations create the destination on first use.
type QueuePublisher interface {
	Publish(ctx context.Context, env OutboxEnvelope) error
}

// QueueMessage is one message pulled from the external transport.
type QueueMessage struct {
	ID            string
	Body          []byte
	ReceiptHandle string
}

// QueueReceiver long-polls the external transport. Messages that are not
// acked become visible again after the transport's visibility timeout.
type QueueReceiver interface {
	Receive(ctx context.Context, max int) ([]QueueMessage, error)
	Ack(ctx context.Context, msg QueueMessage) error
}

// UnitOfWork runs fn inside a single storage transaction. Repository calls
// made with the context passed to fn join that transaction, so aggregate
// mutations and their outbox rows commit or roll back together.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
