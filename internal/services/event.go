package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventbooking/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	outboxRepo     domain.OutboxRepository
	uow            domain.UnitOfWork
	dispatcher     domain.EventDispatcher
	contextTimeout time.Duration
}

// NewEventService creates the event lifecycle command handlers.
func NewEventService(
	eventRepo domain.EventRepository,
	outboxRepo domain.OutboxRepository,
	uow domain.UnitOfWork,
	dispatcher domain.EventDispatcher,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		outboxRepo:     outboxRepo,
		uow:            uow,
		dispatcher:     dispatcher,
		contextTimeout: timeout,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.OrganizerID == "" {
		return fmt.Errorf("event organizer is required")
	}
	if event.Capacity <= 0 {
		return fmt.Errorf("capacity must be a positive integer")
	}
	return s.eventRepo.Create(ctx, event)
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListPublishedEvents(ctx context.Context, p domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.eventRepo.ListPublished(ctx, p)
}

func (s *eventService) PublishEvent(ctx context.Context, eventID string, actor domain.Actor) (*domain.Event, error) {
	return s.togglePublished(ctx, eventID, actor, (*domain.Event).Publish)
}

func (s *eventService) UnpublishEvent(ctx context.Context, eventID string, actor domain.Actor) (*domain.Event, error) {
	return s.togglePublished(ctx, eventID, actor, (*domain.Event).Unpublish)
}

func (s *eventService) togglePublished(ctx context.Context, eventID string, actor domain.Actor, toggle func(*domain.Event, time.Time)) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var event *domain.Event
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get event: %w", err)
		}
		if !actor.IsAdmin && event.OrganizerID != actor.UserID {
			return domain.ErrForbidden
		}
		toggle(event, time.Now())
		if err := s.eventRepo.Update(ctx, event); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// IncreaseCapacity raises the event capacity and, via the dispatched
// EventCapacityIncreased event, promotes as many waitlisted registrations as
// now fit.
func (s *eventService) IncreaseCapacity(ctx context.Context, eventID string, additional int, actor domain.Actor) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		event  *domain.Event
		events []domain.DomainEvent
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.eventRepo.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get event: %w", err)
		}
		if !actor.IsAdmin && event.OrganizerID != actor.UserID {
			return domain.ErrForbidden
		}
		now := time.Now()
		if err := event.IncreaseCapacity(additional, now); err != nil {
			return err
		}
		if err := s.eventRepo.Update(ctx, event); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		events = event.PullEvents()
		return stageOutbox(ctx, s.outboxRepo, events, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, events); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID string, actor domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if !actor.IsAdmin && event.OrganizerID != actor.UserID {
		return domain.ErrForbidden
	}
	// Registrations are removed by the schema's cascade.
	return s.eventRepo.Delete(ctx, eventID)
}
