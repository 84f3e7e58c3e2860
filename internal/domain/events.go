package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event type discriminators. These are the values stored in the outbox
// event_type column and used as the wire envelope's eventType field, so they
// must stay stable across releases.
const (
	EventTypeRegistrationCreated     = "RegistrationCreated"
	EventTypeRegistrationPromoted    = "RegistrationPromoted"
	EventTypeRegistrationCancelled   = "RegistrationCancelled"
	EventTypeRegistrationWaitlisted  = "RegistrationWaitlisted"
	EventTypeWaitlistPositionChanged = "WaitlistPositionChanged"
	EventTypeWaitlistRemoval         = "WaitlistRemoval"
	EventTypeEventCapacityIncreased  = "EventCapacityIncreased"
)

// DomainEvent is an immutable record of something that happened to an
// aggregate. Aggregates buffer them during a transition; the unit of work
// persists them to the outbox and dispatches them after commit.
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// EventDispatcher fans out committed domain events to in-process handlers in
// the order they were appended by the aggregate.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []DomainEvent) error
}

// RegistrationCreated is emitted when a registration is first created,
// whether it was admitted (confirmed) or waitlisted.
type RegistrationCreated struct {
	RegistrationID string             `json:"registration_id"`
	EventID        string             `json:"event_id"`
	UserID         string             `json:"user_id"`
	Status         RegistrationStatus `json:"status"`
	Occurred       time.Time          `json:"occurred_at"`
}

func (e RegistrationCreated) EventType() string     { return EventTypeRegistrationCreated }
func (e RegistrationCreated) OccurredAt() time.Time { return e.Occurred }

// RegistrationPromoted is emitted when a waitlisted registration becomes
// confirmed. A pending registration confirmed for the first time is an
// admission, not a promotion, and does not emit this event.
type RegistrationPromoted struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Occurred       time.Time `json:"occurred_at"`
}

func (e RegistrationPromoted) EventType() string     { return EventTypeRegistrationPromoted }
func (e RegistrationPromoted) OccurredAt() time.Time { return e.Occurred }

// RegistrationCancelled carries the status the registration held before
// cancellation so handlers can decide whether a promotion is due: only a
// cancelled confirmed registration frees a seat.
type RegistrationCancelled struct {
	RegistrationID string             `json:"registration_id"`
	EventID        string             `json:"event_id"`
	UserID         string             `json:"user_id"`
	PreviousStatus RegistrationStatus `json:"previous_status"`
	Occurred       time.Time          `json:"occurred_at"`
}

func (e RegistrationCancelled) EventType() string     { return EventTypeRegistrationCancelled }
func (e RegistrationCancelled) OccurredAt() time.Time { return e.Occurred }

// RegistrationWaitlisted is emitted when a registration is placed on the
// waitlist. Position may be zero when the queue rank has not been computed yet.
type RegistrationWaitlisted struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Position       int       `json:"position"`
	Occurred       time.Time `json:"occurred_at"`
}

func (e RegistrationWaitlisted) EventType() string     { return EventTypeRegistrationWaitlisted }
func (e RegistrationWaitlisted) OccurredAt() time.Time { return e.Occurred }

// WaitlistPositionChanged is emitted when a waitlisted registration's queue
// position changes. OldPosition is zero when the position was previously unset.
type WaitlistPositionChanged struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	OldPosition    int       `json:"old_position"`
	NewPosition    int       `json:"new_position"`
	Occurred       time.Time `json:"occurred_at"`
}

func (e WaitlistPositionChanged) EventType() string     { return EventTypeWaitlistPositionChanged }
func (e WaitlistPositionChanged) OccurredAt() time.Time { return e.Occurred }

// WaitlistRemoval is emitted when a waitlisted registration is removed from
// the queue, leaving a gap that handlers must close by renumbering.
type WaitlistRemoval struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	Position       int       `json:"position"`
	Reason         string    `json:"reason,omitempty"`
	Occurred       time.Time `json:"occurred_at"`
}

func (e WaitlistRemoval) EventType() string     { return EventTypeWaitlistRemoval }
func (e WaitlistRemoval) OccurredAt() time.Time { return e.Occurred }

// EventCapacityIncreased is emitted when an event's capacity is raised,
// which may allow waitlisted registrations to be promoted.
type EventCapacityIncreased struct {
	EventID            string    `json:"event_id"`
	AdditionalCapacity int       `json:"additional_capacity"`
	NewCapacity        int       `json:"new_capacity"`
	Occurred           time.Time `json:"occurred_at"`
}

func (e EventCapacityIncreased) EventType() string     { return EventTypeEventCapacityIncreased }
func (e EventCapacityIncreased) OccurredAt() time.Time { return e.Occurred }

// AllEventTypes lists every known discriminator. The queue consumer uses it
// to know which queues to poll.
func AllEventTypes() []string {
	return []string{
		EventTypeRegistrationCreated,
		EventTypeRegistrationPromoted,
		EventTypeRegistrationCancelled,
		EventTypeRegistrationWaitlisted,
		EventTypeWaitlistPositionChanged,
		EventTypeWaitlistRemoval,
		EventTypeEventCapacityIncreased,
	}
}

// DecodeDomainEvent rehydrates a concrete domain event from its discriminator
// and JSON payload. Unknown discriminators return an error; consumers are
// expected to drop such messages rather than fail the batch.
func DecodeDomainEvent(eventType string, payload []byte) (DomainEvent, error) {
	switch eventType {
	case EventTypeRegistrationCreated:
		var e RegistrationCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case EventTypeRegistrationPromoted:
		var e RegistrationPromoted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case EventTypeRegistrationCancelled:
		var e RegistrationCancelled
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case EventTypeRegistrationWaitlisted:
		var e RegistrationWaitlisted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case EventTypeWaitlistPositionChanged:
		var e WaitlistPositionChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case EventTypeWaitlistRemoval:
		var e WaitlistRemoval
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case EventTypeEventCapacityIncreased:
		var e EventCapacityIncreased
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
