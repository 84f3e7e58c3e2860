// Package outbox contains the background workers that move committed domain
// events from the outbox table to the external queue and back into handlers.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"eventbooking/internal/domain"
)

const (
	// DefaultBatchSize is how many due pending rows one poll claims.
	DefaultBatchSize = 50
	// DefaultMaxRetries bounds the backoff schedule; once exhausted the
	// message is parked as failed (dead letter) for manual remediation.
	DefaultMaxRetries = 25

	defaultPollInterval  = 2 * time.Second
	defaultErrorInterval = 10 * time.Second

	backoffStep = 5 * time.Second
	backoffCap  = 5 * time.Minute
)

// Processor continuously claims pending outbox messages and publishes them to
// the external queue. Multiple replicas may run concurrently: the claim
// fields reduce duplicate publishes, but delivery stays at-least-once and
// consumers must be idempotent.
type Processor struct {
	repo      domain.OutboxRepository
	publisher domain.QueuePublisher
	logger    *slog.Logger
	workerID  string

	batchSize     int
	maxRetries    int
	pollInterval  time.Duration
	errorInterval time.Duration
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithBatchSize overrides the claim batch size.
func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) { p.batchSize = n }
}

// WithMaxRetries overrides the retry cap before a message is parked as failed.
func WithMaxRetries(n int) ProcessorOption {
	return func(p *Processor) { p.maxRetries = n }
}

// WithPollInterval overrides the idle sleep between polls.
func WithPollInterval(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.pollInterval = d }
}

func NewProcessor(repo domain.OutboxRepository, publisher domain.QueuePublisher, workerID string, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		repo:          repo,
		publisher:     publisher,
		logger:        logger,
		workerID:      workerID,
		batchSize:     DefaultBatchSize,
		maxRetries:    DefaultMaxRetries,
		pollInterval:  defaultPollInterval,
		errorInterval: defaultErrorInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Loop-level errors are logged and slept
// over; the processor never exits on its own.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("outbox processor started", "worker_id", p.workerID, "batch_size", p.batchSize)
	for {
		if ctx.Err() != nil {
			p.logger.Info("outbox processor stopped", "worker_id", p.workerID)
			return
		}
		claimed, err := p.repo.ClaimPending(ctx, p.workerID, p.batchSize, time.Now())
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("claim pending outbox messages", "error", err)
			sleep(ctx, p.errorInterval)
			continue
		}
		if len(claimed) == 0 {
			sleep(ctx, p.pollInterval)
			continue
		}
		for _, msg := range claimed {
			p.process(ctx, msg)
		}
	}
}

func (p *Processor) process(ctx context.Context, msg *domain.OutboxMessage) {
	env := domain.OutboxEnvelope{
		EventType: msg.EventType,
		Payload:   msg.Payload,
	}
	if err := p.publisher.Publish(ctx, env); err != nil {
		p.fail(ctx, msg, err)
		return
	}
	if err := p.repo.MarkProcessed(ctx, msg.ID, time.Now()); err != nil {
		// The publish went out; the row stays processing and will need
		// operator attention, but delivery is not lost.
		p.logger.Error("mark outbox message processed", "message_id", msg.ID, "error", err)
		return
	}
	p.logger.Debug("outbox message published", "message_id", msg.ID, "event_type", msg.EventType)
}

func (p *Processor) fail(ctx context.Context, msg *domain.OutboxMessage, cause error) {
	retry := msg.RetryCount + 1
	if retry >= p.maxRetries {
		p.logger.Error("outbox message exhausted retries, parking as failed",
			"message_id", msg.ID, "event_type", msg.EventType, "retries", retry, "error", cause)
		if err := p.repo.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
			p.logger.Error("mark outbox message dead", "message_id", msg.ID, "error", err)
		}
		return
	}
	next := time.Now().Add(Backoff(retry))
	p.logger.Warn("outbox publish failed, rescheduling",
		"message_id", msg.ID, "event_type", msg.EventType, "retry", retry, "next_attempt_at", next, "error", cause)
	if err := p.repo.Reschedule(ctx, msg.ID, retry, cause.Error(), next); err != nil {
		p.logger.Error("reschedule outbox message", "message_id", msg.ID, "error", err)
	}
}

// Backoff returns the delay before the given retry attempt:
// min(5 minutes, 5 seconds x retryCount).
func Backoff(retryCount int) time.Duration {
	d := time.Duration(retryCount) * backoffStep
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
