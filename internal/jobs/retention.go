// Package jobs holds periodic maintenance tasks.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"eventbooking/internal/domain"
)

// Retention periodically purges cancelled registrations and processed outbox
// messages older than their TTLs. Rows in any other state are never touched.
type Retention struct {
	regRepo    domain.RegistrationRepository
	outboxRepo domain.OutboxRepository
	logger     *slog.Logger

	interval           time.Duration
	cancelledTTL       time.Duration
	processedOutboxTTL time.Duration
}

func NewRetention(
	regRepo domain.RegistrationRepository,
	outboxRepo domain.OutboxRepository,
	logger *slog.Logger,
	interval, cancelledTTL, processedOutboxTTL time.Duration,
) *Retention {
	return &Retention{
		regRepo:            regRepo,
		outboxRepo:         outboxRepo,
		logger:             logger,
		interval:           interval,
		cancelledTTL:       cancelledTTL,
		processedOutboxTTL: processedOutboxTTL,
	}
}

// Run purges on every tick until ctx is cancelled. The first purge happens
// after one full interval, not at startup.
func (j *Retention) Run(ctx context.Context) {
	j.logger.Info("retention job started", "interval", j.interval)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("retention job stopped")
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Retention) purge(ctx context.Context) {
	now := time.Now()

	removed, err := j.regRepo.DeleteCancelledBefore(ctx, now.Add(-j.cancelledTTL))
	if err != nil {
		j.logger.Error("purge cancelled registrations", "error", err)
	} else if removed > 0 {
		j.logger.Info("purged cancelled registrations", "count", removed)
	}

	removed, err = j.outboxRepo.DeleteProcessedBefore(ctx, now.Add(-j.processedOutboxTTL))
	if err != nil {
		j.logger.Error("purge processed outbox messages", "error", err)
	} else if removed > 0 {
		j.logger.Info("purged processed outbox messages", "count", removed)
	}
}
