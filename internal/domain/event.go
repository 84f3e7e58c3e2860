package domain

import (
	"context"
	"fmt"
	"time"
)

// Event represents a schedulable activity with finite capacity.
// Capacity is a ceiling on confirmed registrations only; cancelled and
// waitlisted registrations never count against it.
// swagger:model Event
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Timezone    string    `json:"timezone"`
	Location    string    `json:"location"`
	Capacity    int       `json:"capacity"`
	Published   bool      `json:"published"`
	OrganizerID string    `json:"organizer_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// ConfirmedCount is the number of confirmed registrations, loaded by the
	// repository alongside the row. It is a read-model value, not a column.
	ConfirmedCount int `json:"confirmed_count"`

	events []DomainEvent
}

// NewEvent returns a new draft (unpublished) Event. ID is set by the
// repository on create.
func NewEvent(name, description, timezone, location, organizerID string, startTime, endTime time.Time, capacity int, now time.Time) (*Event, error) {
	if name == "" {
		return nil, fmt.Errorf("event name is required")
	}
	if organizerID == "" {
		return nil, fmt.Errorf("event organizer is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be a positive integer")
	}
	if !endTime.IsZero() && endTime.Before(startTime) {
		return nil, fmt.Errorf("event end time must not be before start time")
	}
	return &Event{
		Name:        name,
		Description: description,
		StartTime:   startTime,
		EndTime:     endTime,
		Timezone:    timezone,
		Location:    location,
		Capacity:    capacity,
		OrganizerID: organizerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsFull reports whether the event has no free seats: true when the count of
// confirmed registrations has reached capacity.
func (e *Event) IsFull() bool {
	return e.ConfirmedCount >= e.Capacity
}

// Publish opens the event for new registrations. Idempotent.
func (e *Event) Publish(now time.Time) {
	if e.Published {
		return
	}
	e.Published = true
	e.UpdatedAt = now
}

// Unpublish stops the event from accepting new registrations. Idempotent.
func (e *Event) Unpublish(now time.Time) {
	if !e.Published {
		return
	}
	e.Published = false
	e.UpdatedAt = now
}

// IncreaseCapacity raises the capacity by delta and emits
// EventCapacityIncreased so waitlisted registrations can be promoted.
func (e *Event) IncreaseCapacity(delta int, now time.Time) error {
	if delta <= 0 {
		return fmt.Errorf("additional capacity must be a positive integer")
	}
	e.Capacity += delta
	e.UpdatedAt = now
	e.record(EventCapacityIncreased{
		EventID:            e.ID,
		AdditionalCapacity: delta,
		NewCapacity:        e.Capacity,
		Occurred:           now,
	})
	return nil
}

// PullEvents drains and returns the buffered domain events.
func (e *Event) PullEvents() []DomainEvent {
	events := e.events
	e.events = nil
	return events
}

func (e *Event) record(ev DomainEvent) {
	e.events = append(e.events, ev)
}

// EventRepository defines the interface for event storage. Reads populate
// ConfirmedCount from the registrations table.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	// GetByIDForUpdate locks the event row for the duration of the enclosing
	// transaction, serializing admission decisions near the capacity boundary.
	GetByIDForUpdate(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, event *Event) error
	ListPublished(ctx context.Context, p PaginationParams) ([]*Event, int, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*Event, error)
	Delete(ctx context.Context, id string) error
}

// EventService defines the event lifecycle command handlers.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	ListPublishedEvents(ctx context.Context, p PaginationParams) ([]*Event, int, error)
	PublishEvent(ctx context.Context, eventID string, actor Actor) (*Event, error)
	UnpublishEvent(ctx context.Context, eventID string, actor Actor) (*Event, error)
	IncreaseCapacity(ctx context.Context, eventID string, additional int, actor Actor) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string, actor Actor) error
}
