package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbooking/internal/domain"
)

func openEvent(capacity, confirmed int) *domain.Event {
	return &domain.Event{
		ID:             "ev-1",
		Name:           "GopherCon",
		OrganizerID:    "org-1",
		Capacity:       capacity,
		ConfirmedCount: confirmed,
		Published:      true,
		StartTime:      time.Now().Add(48 * time.Hour),
	}
}

func newRegistrationFixture(event *domain.Event) (domain.RegistrationService, *mockRegRepo, *mockOutboxRepo, *mockDispatcher) {
	eventRepo := &mockEventRepo{events: map[string]*domain.Event{}}
	if event != nil {
		eventRepo.events[event.ID] = event
	}
	regRepo := &mockRegRepo{
		regs:   map[string]*domain.EventRegistration{},
		active: map[string]*domain.EventRegistration{},
	}
	userRepo := &mockUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Email: "user@example.com"},
	}}
	outboxRepo := &mockOutboxRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewRegistrationService(eventRepo, regRepo, userRepo, outboxRepo, &mockUnitOfWork{}, dispatcher, 5*time.Second)
	return svc, regRepo, outboxRepo, dispatcher
}

func TestRegistrationService_RegisterForEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms when seats are free", func(t *testing.T) {
		svc, regRepo, outboxRepo, dispatcher := newRegistrationFixture(openEvent(10, 4))

		result, err := svc.RegisterForEvent(ctx, "ev-1", "user-1", "veggie")
		require.NoError(t, err)
		assert.False(t, result.Waitlisted)
		assert.Equal(t, domain.RegistrationStatusConfirmed, result.Registration.Status)
		assert.Nil(t, result.Registration.PositionInQueue)
		assert.Equal(t, "veggie", result.Registration.Notes)

		require.Len(t, regRepo.created, 1)
		require.Len(t, outboxRepo.inserted, 1)
		assert.Equal(t, domain.EventTypeRegistrationCreated, outboxRepo.inserted[0].EventType)
		require.Len(t, dispatcher.dispatched, 1)
	})

	t.Run("waitlists with next queue position when full", func(t *testing.T) {
		svc, regRepo, outboxRepo, _ := newRegistrationFixture(openEvent(10, 10))
		regRepo.nextPos = 3

		result, err := svc.RegisterForEvent(ctx, "ev-1", "user-1", "")
		require.NoError(t, err)
		assert.True(t, result.Waitlisted)
		assert.Equal(t, domain.RegistrationStatusWaitlisted, result.Registration.Status)
		require.NotNil(t, result.Registration.PositionInQueue)
		assert.Equal(t, 3, *result.Registration.PositionInQueue)

		// Creation and the position assignment both land in the outbox.
		require.Len(t, outboxRepo.inserted, 2)
		assert.Equal(t, domain.EventTypeRegistrationCreated, outboxRepo.inserted[0].EventType)
		assert.Equal(t, domain.EventTypeWaitlistPositionChanged, outboxRepo.inserted[1].EventType)
	})

	t.Run("rejects a duplicate active registration", func(t *testing.T) {
		svc, regRepo, _, dispatcher := newRegistrationFixture(openEvent(10, 0))
		regRepo.active["ev-1:user-1"] = &domain.EventRegistration{ID: "reg-0", Status: domain.RegistrationStatusConfirmed}

		_, err := svc.RegisterForEvent(ctx, "ev-1", "user-1", "")
		require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
		assert.Empty(t, regRepo.created)
		assert.Empty(t, dispatcher.dispatched)
	})

	t.Run("rejects an unpublished event", func(t *testing.T) {
		event := openEvent(10, 0)
		event.Published = false
		svc, _, _, _ := newRegistrationFixture(event)

		_, err := svc.RegisterForEvent(ctx, "ev-1", "user-1", "")
		require.ErrorIs(t, err, domain.ErrRegistrationClosed)
	})

	t.Run("rejects an event that already started", func(t *testing.T) {
		event := openEvent(10, 0)
		event.StartTime = time.Now().Add(-time.Hour)
		svc, _, _, _ := newRegistrationFixture(event)

		_, err := svc.RegisterForEvent(ctx, "ev-1", "user-1", "")
		require.ErrorIs(t, err, domain.ErrEventStarted)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _, _, _ := newRegistrationFixture(nil)

		_, err := svc.RegisterForEvent(ctx, "ev-1", "user-1", "")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _, _ := newRegistrationFixture(openEvent(10, 0))

		_, err := svc.RegisterForEvent(ctx, "ev-1", "user-2", "")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRegistrationService_ConfirmRegistration(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{UserID: "admin-1", IsAdmin: true}

	t.Run("promotes a waitlisted registration", func(t *testing.T) {
		svc, regRepo, outboxRepo, dispatcher := newRegistrationFixture(openEvent(10, 4))
		pos := 1
		regRepo.regs["reg-1"] = &domain.EventRegistration{
			ID:              "reg-1",
			EventID:         "ev-1",
			UserID:          "user-1",
			Status:          domain.RegistrationStatusWaitlisted,
			PositionInQueue: &pos,
		}

		reg, err := svc.ConfirmRegistration(ctx, "reg-1", admin)
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationStatusConfirmed, reg.Status)
		assert.Nil(t, reg.PositionInQueue)

		require.Len(t, regRepo.updated, 1)
		require.Len(t, outboxRepo.inserted, 1)
		assert.Equal(t, domain.EventTypeRegistrationPromoted, outboxRepo.inserted[0].EventType)
		require.Len(t, dispatcher.dispatched, 1)
	})

	t.Run("requires an admin actor", func(t *testing.T) {
		svc, _, _, _ := newRegistrationFixture(openEvent(10, 4))

		_, err := svc.ConfirmRegistration(ctx, "reg-1", domain.Actor{UserID: "user-1"})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("already confirmed", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", Status: domain.RegistrationStatusConfirmed}

		_, err := svc.ConfirmRegistration(ctx, "reg-1", admin)
		require.ErrorIs(t, err, domain.ErrAlreadyConfirmed)
	})

	t.Run("invalid transition from cancelled", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", Status: domain.RegistrationStatusCancelled}

		_, err := svc.ConfirmRegistration(ctx, "reg-1", admin)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestRegistrationService_CancelRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancels their own registration", func(t *testing.T) {
		svc, regRepo, outboxRepo, dispatcher := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{
			ID:      "reg-1",
			EventID: "ev-1",
			UserID:  "user-1",
			Status:  domain.RegistrationStatusConfirmed,
		}

		err := svc.CancelRegistration(ctx, "reg-1", domain.Actor{UserID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationStatusCancelled, regRepo.regs["reg-1"].Status)

		require.Len(t, outboxRepo.inserted, 1)
		require.Len(t, dispatcher.dispatched, 1)
		cancelled, ok := dispatcher.dispatched[0].(domain.RegistrationCancelled)
		require.True(t, ok)
		assert.Equal(t, domain.RegistrationStatusConfirmed, cancelled.PreviousStatus)
	})

	t.Run("admin cancels any registration", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationStatusConfirmed}

		err := svc.CancelRegistration(ctx, "reg-1", domain.Actor{UserID: "admin-1", IsAdmin: true})
		require.NoError(t, err)
	})

	t.Run("another attendee may not cancel", func(t *testing.T) {
		svc, regRepo, _, dispatcher := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationStatusConfirmed}

		err := svc.CancelRegistration(ctx, "reg-1", domain.Actor{UserID: "user-2"})
		require.ErrorIs(t, err, domain.ErrForbidden)
		assert.Empty(t, dispatcher.dispatched)
	})

	t.Run("cancelling twice stages nothing new", func(t *testing.T) {
		svc, regRepo, outboxRepo, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationStatusCancelled}

		err := svc.CancelRegistration(ctx, "reg-1", domain.Actor{UserID: "user-1"})
		require.NoError(t, err)
		assert.Empty(t, outboxRepo.inserted)
	})
}

func TestRegistrationService_Attendance(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{UserID: "admin-1", IsAdmin: true}

	t.Run("marks a confirmed registration attended", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", Status: domain.RegistrationStatusConfirmed}

		reg, err := svc.MarkAttended(ctx, "reg-1", admin)
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationStatusAttended, reg.Status)
	})

	t.Run("marks a confirmed registration no-show", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", Status: domain.RegistrationStatusConfirmed}

		reg, err := svc.MarkNoShow(ctx, "reg-1", admin)
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationStatusNoShow, reg.Status)
	})

	t.Run("rejects attendance for a waitlisted registration", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", Status: domain.RegistrationStatusWaitlisted}

		_, err := svc.MarkAttended(ctx, "reg-1", admin)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("requires an admin actor", func(t *testing.T) {
		svc, _, _, _ := newRegistrationFixture(openEvent(10, 4))

		_, err := svc.MarkNoShow(ctx, "reg-1", domain.Actor{UserID: "user-1"})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestRegistrationService_ListRegistrations(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by status", func(t *testing.T) {
		svc, regRepo, _, _ := newRegistrationFixture(openEvent(10, 4))
		regRepo.regs["reg-1"] = &domain.EventRegistration{ID: "reg-1", EventID: "ev-1", Status: domain.RegistrationStatusConfirmed}
		regRepo.regs["reg-2"] = &domain.EventRegistration{ID: "reg-2", EventID: "ev-1", Status: domain.RegistrationStatusWaitlisted}

		status := domain.RegistrationStatusWaitlisted
		regs, total, err := svc.ListRegistrations(ctx, "ev-1", &status, domain.PaginationParams{Page: 1, PageSize: 20})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, regs, 1)
		assert.Equal(t, "reg-2", regs[0].ID)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _, _, _ := newRegistrationFixture(nil)

		_, _, err := svc.ListRegistrations(ctx, "ev-1", nil, domain.PaginationParams{Page: 1, PageSize: 20})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
