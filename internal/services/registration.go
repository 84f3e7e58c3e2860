package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventbooking/internal/domain"
)

type registrationService struct {
	eventRepo      domain.EventRepository
	regRepo        domain.RegistrationRepository
	userRepo       domain.UserRepository
	outboxRepo     domain.OutboxRepository
	uow            domain.UnitOfWork
	dispatcher     domain.EventDispatcher
	contextTimeout time.Duration
}

// NewRegistrationService creates the registration command handlers. Every
// command runs its aggregate mutation and outbox writes in one transaction,
// then dispatches the committed events in-process.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	regRepo domain.RegistrationRepository,
	userRepo domain.UserRepository,
	outboxRepo domain.OutboxRepository,
	uow domain.UnitOfWork,
	dispatcher domain.EventDispatcher,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		eventRepo:      eventRepo,
		regRepo:        regRepo,
		userRepo:       userRepo,
		outboxRepo:     outboxRepo,
		uow:            uow,
		dispatcher:     dispatcher,
		contextTimeout: timeout,
	}
}

// stageOutbox writes one outbox row per domain event inside the current
// transaction, so the events survive a crash between commit and dispatch.
func stageOutbox(ctx context.Context, repo domain.OutboxRepository, events []domain.DomainEvent, now time.Time) error {
	for _, ev := range events {
		msg, err := domain.NewOutboxMessage(ev, now)
		if err != nil {
			return err
		}
		if err := repo.Insert(ctx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
	}
	return nil
}

func (s *registrationService) RegisterForEvent(ctx context.Context, eventID, userID, notes string) (*domain.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		result *domain.RegistrationResult
		events []domain.DomainEvent
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		// Lock the event row so concurrent registrations near the capacity
		// boundary serialize on the admission decision.
		event, err := s.eventRepo.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get event: %w", err)
		}
		now := time.Now()
		if !event.Published {
			return domain.ErrRegistrationClosed
		}
		if !event.StartTime.After(now) {
			return domain.ErrEventStarted
		}

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}

		if _, err := s.regRepo.GetActiveByEventAndUser(ctx, eventID, userID); err == nil {
			return domain.ErrAlreadyRegistered
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get registration: %w", err)
		}

		reg, err := domain.NewEventRegistration(event, user, notes, now)
		if err != nil {
			return err
		}
		waitlisted := reg.Status == domain.RegistrationStatusWaitlisted
		if waitlisted {
			position, err := s.regRepo.NextWaitlistPosition(ctx, eventID)
			if err != nil {
				return fmt.Errorf("calculate waitlist position: %w", err)
			}
			if err := reg.UpdateWaitlistPosition(position, now); err != nil {
				return err
			}
		}
		if err := s.regRepo.Create(ctx, reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}

		events = reg.PullEvents()
		if err := stageOutbox(ctx, s.outboxRepo, events, now); err != nil {
			return err
		}

		message := "You are registered for this event."
		if waitlisted {
			message = "The event is full; you have been added to the waitlist."
		}
		result = &domain.RegistrationResult{
			Registration: reg,
			Waitlisted:   waitlisted,
			Message:      message,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, events); err != nil {
		// The registration is committed; the caller sees the dispatch failure
		// and must treat the command as "probably happened, verify".
		return nil, err
	}
	return result, nil
}

func (s *registrationService) ConfirmRegistration(ctx context.Context, registrationID string, actor domain.Actor) (*domain.EventRegistration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !actor.IsAdmin {
		return nil, domain.ErrForbidden
	}

	var (
		reg    *domain.EventRegistration
		events []domain.DomainEvent
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = s.regRepo.GetByID(ctx, registrationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get registration: %w", err)
		}
		if reg.Status == domain.RegistrationStatusConfirmed {
			return domain.ErrAlreadyConfirmed
		}
		now := time.Now()
		if err := reg.Confirm(now); err != nil {
			return err
		}
		if err := s.regRepo.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		events = reg.PullEvents()
		return stageOutbox(ctx, s.outboxRepo, events, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, events); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *registrationService) CancelRegistration(ctx context.Context, registrationID string, actor domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var events []domain.DomainEvent
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		reg, err := s.regRepo.GetByID(ctx, registrationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get registration: %w", err)
		}
		if !actor.IsAdmin && actor.UserID != reg.UserID {
			return domain.ErrForbidden
		}
		now := time.Now()
		reg.Cancel(now)
		if err := s.regRepo.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		events = reg.PullEvents()
		return stageOutbox(ctx, s.outboxRepo, events, now)
	})
	if err != nil {
		return err
	}

	// Promotion of the next waitlisted registrant happens in the
	// RegistrationCancelled handler, not here.
	return s.dispatcher.Dispatch(ctx, events)
}

func (s *registrationService) MarkAttended(ctx context.Context, registrationID string, actor domain.Actor) (*domain.EventRegistration, error) {
	return s.markAttendance(ctx, registrationID, actor, (*domain.EventRegistration).MarkAsAttended)
}

func (s *registrationService) MarkNoShow(ctx context.Context, registrationID string, actor domain.Actor) (*domain.EventRegistration, error) {
	return s.markAttendance(ctx, registrationID, actor, (*domain.EventRegistration).MarkAsNoShow)
}

func (s *registrationService) markAttendance(ctx context.Context, registrationID string, actor domain.Actor, mark func(*domain.EventRegistration, time.Time) error) (*domain.EventRegistration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !actor.IsAdmin {
		return nil, domain.ErrForbidden
	}

	var reg *domain.EventRegistration
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		reg, err = s.regRepo.GetByID(ctx, registrationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get registration: %w", err)
		}
		if err := mark(reg, time.Now()); err != nil {
			return err
		}
		if err := s.regRepo.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *registrationService) ListRegistrations(ctx context.Context, eventID string, status *domain.RegistrationStatus, p domain.PaginationParams) ([]*domain.EventRegistration, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("get event: %w", err)
	}
	return s.regRepo.ListByEvent(ctx, eventID, status, p)
}
