package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbooking/internal/domain"
)

func waitlistedReg(id string, position int) *domain.EventRegistration {
	pos := position
	return &domain.EventRegistration{
		ID:              id,
		EventID:         "ev-1",
		UserID:          "user-" + id,
		Status:          domain.RegistrationStatusWaitlisted,
		PositionInQueue: &pos,
		RegisteredAt:    time.Now(),
	}
}

func newWaitlistFixture(event *domain.Event, waitlist []*domain.EventRegistration) (domain.WaitlistService, *mockRegRepo, *mockOutboxRepo, *mockDispatcher) {
	eventRepo := &mockEventRepo{events: map[string]*domain.Event{}}
	if event != nil {
		eventRepo.events[event.ID] = event
	}
	regRepo := &mockRegRepo{
		regs:     map[string]*domain.EventRegistration{},
		waitlist: waitlist,
	}
	outboxRepo := &mockOutboxRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewWaitlistService(eventRepo, regRepo, outboxRepo, &mockUnitOfWork{}, dispatcher)
	return svc, regRepo, outboxRepo, dispatcher
}

func TestWaitlistService_PromoteEligible(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes the head of the queue and renumbers the rest", func(t *testing.T) {
		// One seat free, three waitlisted.
		event := openEvent(10, 9)
		waitlist := []*domain.EventRegistration{
			waitlistedReg("reg-1", 1),
			waitlistedReg("reg-2", 2),
			waitlistedReg("reg-3", 3),
		}
		svc, regRepo, outboxRepo, dispatcher := newWaitlistFixture(event, waitlist)

		require.NoError(t, svc.PromoteEligible(ctx, "ev-1"))

		assert.Equal(t, domain.RegistrationStatusConfirmed, waitlist[0].Status)
		assert.Nil(t, waitlist[0].PositionInQueue)

		assert.Equal(t, domain.RegistrationStatusWaitlisted, waitlist[1].Status)
		require.NotNil(t, waitlist[1].PositionInQueue)
		assert.Equal(t, 1, *waitlist[1].PositionInQueue)
		require.NotNil(t, waitlist[2].PositionInQueue)
		assert.Equal(t, 2, *waitlist[2].PositionInQueue)

		// Promotion plus two position changes, all persisted and staged.
		assert.Len(t, regRepo.updated, 3)
		assert.Len(t, outboxRepo.inserted, 3)
		require.Len(t, dispatcher.dispatched, 3)
		promoted, ok := dispatcher.dispatched[0].(domain.RegistrationPromoted)
		require.True(t, ok)
		assert.Equal(t, "reg-1", promoted.RegistrationID)
	})

	t.Run("promotes everyone when capacity allows", func(t *testing.T) {
		event := openEvent(10, 2)
		waitlist := []*domain.EventRegistration{
			waitlistedReg("reg-1", 1),
			waitlistedReg("reg-2", 2),
		}
		svc, _, _, dispatcher := newWaitlistFixture(event, waitlist)

		require.NoError(t, svc.PromoteEligible(ctx, "ev-1"))
		assert.Equal(t, domain.RegistrationStatusConfirmed, waitlist[0].Status)
		assert.Equal(t, domain.RegistrationStatusConfirmed, waitlist[1].Status)
		assert.Len(t, dispatcher.dispatched, 2)
	})

	t.Run("promotes nobody when the event is still full", func(t *testing.T) {
		event := openEvent(10, 10)
		waitlist := []*domain.EventRegistration{
			waitlistedReg("reg-1", 1),
			waitlistedReg("reg-2", 2),
		}
		svc, regRepo, _, dispatcher := newWaitlistFixture(event, waitlist)

		require.NoError(t, svc.PromoteEligible(ctx, "ev-1"))
		assert.Equal(t, domain.RegistrationStatusWaitlisted, waitlist[0].Status)
		// Positions were already contiguous, so nothing is rewritten.
		assert.Empty(t, regRepo.updated)
		assert.Empty(t, dispatcher.dispatched)
	})

	t.Run("empty waitlist is a no-op", func(t *testing.T) {
		svc, regRepo, _, dispatcher := newWaitlistFixture(openEvent(10, 5), nil)

		require.NoError(t, svc.PromoteEligible(ctx, "ev-1"))
		assert.Empty(t, regRepo.updated)
		assert.Empty(t, dispatcher.dispatched)
	})

	t.Run("deleted event is a silent no-op", func(t *testing.T) {
		svc, _, _, dispatcher := newWaitlistFixture(nil, nil)

		require.NoError(t, svc.PromoteEligible(ctx, "ev-1"))
		assert.Empty(t, dispatcher.dispatched)
	})
}

func TestWaitlistService_RenumberWaitlist(t *testing.T) {
	ctx := context.Background()

	t.Run("closes gaps left by removed entries", func(t *testing.T) {
		waitlist := []*domain.EventRegistration{
			waitlistedReg("reg-1", 2),
			waitlistedReg("reg-2", 5),
			waitlistedReg("reg-3", 6),
		}
		svc, regRepo, outboxRepo, dispatcher := newWaitlistFixture(openEvent(10, 10), waitlist)

		require.NoError(t, svc.RenumberWaitlist(ctx, "ev-1"))

		assert.Equal(t, 1, *waitlist[0].PositionInQueue)
		assert.Equal(t, 2, *waitlist[1].PositionInQueue)
		assert.Equal(t, 3, *waitlist[2].PositionInQueue)
		assert.Len(t, regRepo.updated, 3)
		assert.Len(t, outboxRepo.inserted, 3)
		assert.Len(t, dispatcher.dispatched, 3)
	})

	t.Run("already contiguous positions stay untouched", func(t *testing.T) {
		waitlist := []*domain.EventRegistration{
			waitlistedReg("reg-1", 1),
			waitlistedReg("reg-2", 2),
		}
		svc, regRepo, _, dispatcher := newWaitlistFixture(openEvent(10, 10), waitlist)

		require.NoError(t, svc.RenumberWaitlist(ctx, "ev-1"))
		assert.Empty(t, regRepo.updated)
		assert.Empty(t, dispatcher.dispatched)
	})
}
