package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"eventbooking/internal/domain"
)

// topOfQueueThreshold is the position at or below which a registrant is
// considered near the front of the waitlist; crossing into it from further
// back is surfaced as a distinguished log line for UX purposes.
const topOfQueueThreshold = 5

// Handlers bundles the collaborators the standard event handlers need.
type Handlers struct {
	Notifier domain.Notifier
	Waitlist domain.WaitlistService
	RegRepo  domain.RegistrationRepository
	Logger   *slog.Logger
}

// RegisterAll wires the standard handlers into the dispatcher:
// notifications for created/promoted/cancelled, waitlist promotion after a
// confirmed registration is cancelled, queue renumbering after a waitlist
// removal, and bulk promotion after a capacity increase.
func (h *Handlers) RegisterAll(d *Dispatcher) {
	d.Register(domain.EventTypeRegistrationCreated, h.onRegistrationCreated)
	d.Register(domain.EventTypeRegistrationPromoted, h.onRegistrationPromoted)
	d.Register(domain.EventTypeRegistrationCancelled, h.onRegistrationCancelled)
	d.Register(domain.EventTypeWaitlistPositionChanged, h.onWaitlistPositionChanged)
	d.Register(domain.EventTypeWaitlistRemoval, h.onWaitlistRemoval)
	d.Register(domain.EventTypeEventCapacityIncreased, h.onEventCapacityIncreased)
}

func (h *Handlers) onRegistrationCreated(ctx context.Context, ev domain.DomainEvent) error {
	e, ok := ev.(domain.RegistrationCreated)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", ev, ev.EventType())
	}
	return h.notify(ctx, e.RegistrationID, domain.NotifyActionCreated)
}

func (h *Handlers) onRegistrationPromoted(ctx context.Context, ev domain.DomainEvent) error {
	e, ok := ev.(domain.RegistrationPromoted)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", ev, ev.EventType())
	}
	return h.notify(ctx, e.RegistrationID, domain.NotifyActionPromoted)
}

func (h *Handlers) onRegistrationCancelled(ctx context.Context, ev domain.DomainEvent) error {
	e, ok := ev.(domain.RegistrationCancelled)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", ev, ev.EventType())
	}
	if err := h.notify(ctx, e.RegistrationID, domain.NotifyActionCancelled); err != nil {
		return err
	}
	switch e.PreviousStatus {
	case domain.RegistrationStatusConfirmed:
		// A confirmed cancellation frees a seat: promote the head of the
		// queue and shift the rest down.
		return h.Waitlist.PromoteEligible(ctx, e.EventID)
	case domain.RegistrationStatusWaitlisted:
		// A waitlisted cancellation frees no seat; only close the gap.
		return h.Waitlist.RenumberWaitlist(ctx, e.EventID)
	default:
		return nil
	}
}

func (h *Handlers) onWaitlistPositionChanged(ctx context.Context, ev domain.DomainEvent) error {
	e, ok := ev.(domain.WaitlistPositionChanged)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", ev, ev.EventType())
	}
	h.Logger.Info("waitlist position changed",
		"registration_id", e.RegistrationID,
		"event_id", e.EventID,
		"old_position", e.OldPosition,
		"new_position", e.NewPosition,
	)
	if e.OldPosition > topOfQueueThreshold && e.NewPosition <= topOfQueueThreshold {
		h.Logger.Info("registration entered the top of the waitlist",
			"registration_id", e.RegistrationID,
			"event_id", e.EventID,
			"new_position", e.NewPosition,
		)
	}
	return nil
}

func (h *Handlers) onWaitlistRemoval(ctx context.Context, ev domain.DomainEvent) error {
	e, ok := ev.(domain.WaitlistRemoval)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", ev, ev.EventType())
	}
	if e.Reason != "" {
		h.Logger.Info("registration removed from waitlist",
			"registration_id", e.RegistrationID, "event_id", e.EventID, "reason", e.Reason)
	} else {
		h.Logger.Info("registration removed from waitlist",
			"registration_id", e.RegistrationID, "event_id", e.EventID)
	}
	return h.Waitlist.RenumberWaitlist(ctx, e.EventID)
}

func (h *Handlers) onEventCapacityIncreased(ctx context.Context, ev domain.DomainEvent) error {
	e, ok := ev.(domain.EventCapacityIncreased)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", ev, ev.EventType())
	}
	h.Logger.Info("event capacity increased",
		"event_id", e.EventID, "additional", e.AdditionalCapacity, "new_capacity", e.NewCapacity)
	return h.Waitlist.PromoteEligible(ctx, e.EventID)
}

func (h *Handlers) notify(ctx context.Context, registrationID, action string) error {
	reg, err := h.RegRepo.GetByID(ctx, registrationID)
	if err != nil {
		return fmt.Errorf("load registration %s: %w", registrationID, err)
	}
	if err := h.Notifier.Notify(ctx, reg, action); err != nil {
		return fmt.Errorf("notify %s: %w", action, err)
	}
	return nil
}
