package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle state of an EventRegistration.
type RegistrationStatus string

const (
	RegistrationStatusPending    RegistrationStatus = "pending"
	RegistrationStatusConfirmed  RegistrationStatus = "confirmed"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusNoShow     RegistrationStatus = "no_show"
)

// Valid reports whether s is one of the known registration statuses.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationStatusPending, RegistrationStatusConfirmed, RegistrationStatusWaitlisted,
		RegistrationStatusCancelled, RegistrationStatusAttended, RegistrationStatusNoShow:
		return true
	}
	return false
}

// EventRegistration represents one user's claim on an event's capacity.
// PositionInQueue is non-nil if and only if the registration is waitlisted;
// positions for a single event's waitlist are contiguous starting at 1 in
// FIFO order by registration time.
// swagger:model EventRegistration
type EventRegistration struct {
	ID              string             `json:"id"`
	EventID         string             `json:"event_id"`
	UserID          string             `json:"user_id"`
	Status          RegistrationStatus `json:"status"`
	PositionInQueue *int               `json:"position_in_queue,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	RegisteredAt    time.Time          `json:"registered_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	events []DomainEvent
}

// NewEventRegistration creates a registration for the given event and user.
// The status is decided by the event's capacity at construction time:
// confirmed when a seat is free, waitlisted otherwise. A waitlisted
// registration has no queue position yet; the caller assigns one via
// UpdateWaitlistPosition after computing the queue rank.
func NewEventRegistration(event *Event, user *User, notes string, now time.Time) (*EventRegistration, error) {
	if event == nil {
		return nil, fmt.Errorf("event is required")
	}
	if user == nil {
		return nil, fmt.Errorf("user is required")
	}

	status := RegistrationStatusConfirmed
	if event.IsFull() {
		status = RegistrationStatusWaitlisted
	}

	reg := &EventRegistration{
		ID:           uuid.NewString(),
		EventID:      event.ID,
		UserID:       user.ID,
		Status:       status,
		Notes:        notes,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	reg.record(RegistrationCreated{
		RegistrationID: reg.ID,
		EventID:        event.ID,
		UserID:         user.ID,
		Status:         status,
		Occurred:       now,
	})
	return reg, nil
}

// Confirm moves the registration to confirmed. Valid from pending or
// waitlisted; a no-op when already confirmed. A waitlisted registration being
// confirmed is a promotion and emits RegistrationPromoted; confirming a
// pending registration is the original admission and emits nothing.
func (r *EventRegistration) Confirm(now time.Time) error {
	switch r.Status {
	case RegistrationStatusConfirmed:
		return nil
	case RegistrationStatusPending, RegistrationStatusWaitlisted:
		wasWaitlisted := r.Status == RegistrationStatusWaitlisted
		r.Status = RegistrationStatusConfirmed
		r.PositionInQueue = nil
		r.UpdatedAt = now
		if wasWaitlisted {
			r.record(RegistrationPromoted{
				RegistrationID: r.ID,
				EventID:        r.EventID,
				UserID:         r.UserID,
				Occurred:       now,
			})
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot confirm a %s registration", ErrInvalidTransition, r.Status)
	}
}

// Cancel moves the registration to cancelled from any state, clearing the
// queue position. Cancelling an already cancelled registration is a no-op and
// emits nothing.
func (r *EventRegistration) Cancel(now time.Time) {
	if r.Status == RegistrationStatusCancelled {
		return
	}
	prev := r.Status
	r.Status = RegistrationStatusCancelled
	r.PositionInQueue = nil
	r.UpdatedAt = now
	r.record(RegistrationCancelled{
		RegistrationID: r.ID,
		EventID:        r.EventID,
		UserID:         r.UserID,
		PreviousStatus: prev,
		Occurred:       now,
	})
}

// MarkAsAttended records that the registrant showed up. Valid only from
// confirmed.
func (r *EventRegistration) MarkAsAttended(now time.Time) error {
	if r.Status != RegistrationStatusConfirmed {
		return fmt.Errorf("%w: cannot mark a %s registration as attended", ErrInvalidTransition, r.Status)
	}
	r.Status = RegistrationStatusAttended
	r.UpdatedAt = now
	return nil
}

// MarkAsNoShow records that the registrant did not show up. Valid only from
// confirmed.
func (r *EventRegistration) MarkAsNoShow(now time.Time) error {
	if r.Status != RegistrationStatusConfirmed {
		return fmt.Errorf("%w: cannot mark a %s registration as no-show", ErrInvalidTransition, r.Status)
	}
	r.Status = RegistrationStatusNoShow
	r.UpdatedAt = now
	return nil
}

// AddToWaitlist places the registration on the waitlist at the given position
// (nil when the rank is not known yet). A no-op when already waitlisted.
func (r *EventRegistration) AddToWaitlist(position *int, now time.Time) {
	if r.Status == RegistrationStatusWaitlisted {
		return
	}
	r.Status = RegistrationStatusWaitlisted
	r.PositionInQueue = position
	r.UpdatedAt = now
	pos := 0
	if position != nil {
		pos = *position
	}
	r.record(RegistrationWaitlisted{
		RegistrationID: r.ID,
		EventID:        r.EventID,
		UserID:         r.UserID,
		Position:       pos,
		Occurred:       now,
	})
}

// UpdateWaitlistPosition sets the queue position of a waitlisted registration.
// A no-op (no event) when the position is unchanged.
func (r *EventRegistration) UpdateWaitlistPosition(newPosition int, now time.Time) error {
	if r.Status != RegistrationStatusWaitlisted {
		return ErrNotWaitlisted
	}
	if newPosition <= 0 {
		return ErrInvalidPosition
	}
	if r.PositionInQueue != nil && *r.PositionInQueue == newPosition {
		return nil
	}
	old := 0
	if r.PositionInQueue != nil {
		old = *r.PositionInQueue
	}
	r.PositionInQueue = &newPosition
	r.UpdatedAt = now
	r.record(WaitlistPositionChanged{
		RegistrationID: r.ID,
		EventID:        r.EventID,
		OldPosition:    old,
		NewPosition:    newPosition,
		Occurred:       now,
	})
	return nil
}

// RemoveFromWaitlist cancels a waitlisted registration, clearing its position
// and emitting WaitlistRemoval so the remaining queue can be renumbered.
func (r *EventRegistration) RemoveFromWaitlist(reason string, now time.Time) error {
	if r.Status != RegistrationStatusWaitlisted {
		return ErrNotWaitlisted
	}
	pos := 0
	if r.PositionInQueue != nil {
		pos = *r.PositionInQueue
	}
	r.Status = RegistrationStatusCancelled
	r.PositionInQueue = nil
	r.UpdatedAt = now
	r.record(WaitlistRemoval{
		RegistrationID: r.ID,
		EventID:        r.EventID,
		Position:       pos,
		Reason:         reason,
		Occurred:       now,
	})
	return nil
}

// IsWaitlisted reports whether the registration is waitlisted with a valid
// queue position. The position check guards against an illegal nil or
// non-positive position sneaking in through storage.
func (r *EventRegistration) IsWaitlisted() bool {
	return r.Status == RegistrationStatusWaitlisted &&
		r.PositionInQueue != nil && *r.PositionInQueue > 0
}

// PullEvents drains and returns the buffered domain events. The unit of work
// calls this exactly once per persisted transaction.
func (r *EventRegistration) PullEvents() []DomainEvent {
	events := r.events
	r.events = nil
	return events
}

func (r *EventRegistration) record(ev DomainEvent) {
	r.events = append(r.events, ev)
}

// Actor identifies who is executing a command, as resolved by the API layer
// from the authenticated identity.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// RegistrationResult is the outcome of a register command, distinguishing
// immediate admission from waitlisting.
type RegistrationResult struct {
	Registration *EventRegistration `json:"registration"`
	Waitlisted   bool               `json:"waitlisted"`
	Message      string             `json:"message"`
}

// RegistrationRepository defines storage operations for event registrations.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *EventRegistration) error
	GetByID(ctx context.Context, id string) (*EventRegistration, error)
	// GetActiveByEventAndUser returns the non-cancelled registration for the
	// (event, user) pair, or ErrNotFound.
	GetActiveByEventAndUser(ctx context.Context, eventID, userID string) (*EventRegistration, error)
	Update(ctx context.Context, reg *EventRegistration) error
	// ListWaitlistedByEvent returns waitlisted registrations ordered by queue
	// position ascending (FIFO promotion order).
	ListWaitlistedByEvent(ctx context.Context, eventID string) ([]*EventRegistration, error)
	CountByEventAndStatus(ctx context.Context, eventID string, status RegistrationStatus) (int, error)
	// NextWaitlistPosition returns the queue rank a newly waitlisted
	// registration should take (current waitlist size + 1).
	NextWaitlistPosition(ctx context.Context, eventID string) (int, error)
	ListByEvent(ctx context.Context, eventID string, status *RegistrationStatus, p PaginationParams) ([]*EventRegistration, int, error)
	// DeleteCancelledBefore purges cancelled registrations last updated before
	// the cutoff. Used by the retention job.
	DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RegistrationService defines the registration command handlers.
type RegistrationService interface {
	RegisterForEvent(ctx context.Context, eventID, userID, notes string) (*RegistrationResult, error)
	ConfirmRegistration(ctx context.Context, registrationID string, actor Actor) (*EventRegistration, error)
	CancelRegistration(ctx context.Context, registrationID string, actor Actor) error
	MarkAttended(ctx context.Context, registrationID string, actor Actor) (*EventRegistration, error)
	MarkNoShow(ctx context.Context, registrationID string, actor Actor) (*EventRegistration, error)
	ListRegistrations(ctx context.Context, eventID string, status *RegistrationStatus, p PaginationParams) ([]*EventRegistration, int, error)
}

// WaitlistService centralizes waitlist promotion and renumbering so the logic
// stays out of the command handlers and can be tested independently. It is
// invoked from the domain event dispatch pipeline.
type WaitlistService interface {
	// PromoteEligible confirms waitlisted registrations in FIFO order while
	// seats are free, then renumbers the remaining queue contiguously from 1.
	PromoteEligible(ctx context.Context, eventID string) error
	// RenumberWaitlist closes gaps left by removed entries, reassigning
	// positions 1..N in FIFO order without promoting anyone.
	RenumberWaitlist(ctx context.Context, eventID string) error
}
