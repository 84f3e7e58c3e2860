package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventbooking/internal/domain"
)

type waitlistService struct {
	eventRepo  domain.EventRepository
	regRepo    domain.RegistrationRepository
	outboxRepo domain.OutboxRepository
	uow        domain.UnitOfWork
	dispatcher domain.EventDispatcher
}

// NewWaitlistService creates the waitlist promotion service. It is invoked
// from the dispatch pipeline after a cancellation, removal, or capacity
// increase has committed, and runs its own transaction.
func NewWaitlistService(
	eventRepo domain.EventRepository,
	regRepo domain.RegistrationRepository,
	outboxRepo domain.OutboxRepository,
	uow domain.UnitOfWork,
	dispatcher domain.EventDispatcher,
) domain.WaitlistService {
	return &waitlistService{
		eventRepo:  eventRepo,
		regRepo:    regRepo,
		outboxRepo: outboxRepo,
		uow:        uow,
		dispatcher: dispatcher,
	}
}

// PromoteEligible confirms waitlisted registrations in FIFO order while the
// event has free seats, then renumbers the remaining queue 1..N. Promotions
// are strictly sequential so the confirmed count never overshoots capacity.
func (s *waitlistService) PromoteEligible(ctx context.Context, eventID string) error {
	var events []domain.DomainEvent
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		event, err := s.eventRepo.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Event deleted while the promotion was in flight; nothing to do.
				return nil
			}
			return fmt.Errorf("get event: %w", err)
		}

		waitlist, err := s.regRepo.ListWaitlistedByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list waitlist: %w", err)
		}
		if len(waitlist) == 0 {
			return nil
		}

		now := time.Now()
		free := event.Capacity - event.ConfirmedCount
		promoted := 0
		for _, reg := range waitlist {
			if promoted >= free {
				break
			}
			if err := reg.Confirm(now); err != nil {
				return fmt.Errorf("promote registration %s: %w", reg.ID, err)
			}
			if err := s.regRepo.Update(ctx, reg); err != nil {
				return fmt.Errorf("update registration %s: %w", reg.ID, err)
			}
			events = append(events, reg.PullEvents()...)
			promoted++
		}

		// Renumber whoever is left so positions stay contiguous from 1.
		for i, reg := range waitlist[promoted:] {
			if err := reg.UpdateWaitlistPosition(i+1, now); err != nil {
				return fmt.Errorf("renumber registration %s: %w", reg.ID, err)
			}
			regEvents := reg.PullEvents()
			if len(regEvents) == 0 {
				continue
			}
			if err := s.regRepo.Update(ctx, reg); err != nil {
				return fmt.Errorf("update registration %s: %w", reg.ID, err)
			}
			events = append(events, regEvents...)
		}

		return stageOutbox(ctx, s.outboxRepo, events, now)
	})
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, events)
}

// RenumberWaitlist reassigns positions 1..N in FIFO order without promoting
// anyone, closing gaps left by removed entries.
func (s *waitlistService) RenumberWaitlist(ctx context.Context, eventID string) error {
	var events []domain.DomainEvent
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		waitlist, err := s.regRepo.ListWaitlistedByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list waitlist: %w", err)
		}
		now := time.Now()
		for i, reg := range waitlist {
			if err := reg.UpdateWaitlistPosition(i+1, now); err != nil {
				return fmt.Errorf("renumber registration %s: %w", reg.ID, err)
			}
			regEvents := reg.PullEvents()
			if len(regEvents) == 0 {
				continue
			}
			if err := s.regRepo.Update(ctx, reg); err != nil {
				return fmt.Errorf("update registration %s: %w", reg.ID, err)
			}
			events = append(events, regEvents...)
		}
		return stageOutbox(ctx, s.outboxRepo, events, now)
	})
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, events)
}
