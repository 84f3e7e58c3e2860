package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEvent(capacity, confirmed int) *Event {
	return &Event{
		ID:             "ev-1",
		Name:           "Go Meetup",
		Capacity:       capacity,
		Published:      true,
		OrganizerID:    "org-1",
		ConfirmedCount: confirmed,
		StartTime:      testNow.Add(24 * time.Hour),
	}
}

func testUser() *User {
	return &User{ID: "user-1", Email: "u@example.com"}
}

func TestNewEventRegistration(t *testing.T) {
	tests := []struct {
		name       string
		event      *Event
		user       *User
		wantStatus RegistrationStatus
		wantErr    bool
	}{
		{
			name:       "confirmed when seats are free",
			event:      testEvent(10, 3),
			user:       testUser(),
			wantStatus: RegistrationStatusConfirmed,
		},
		{
			name:       "waitlisted when event is full",
			event:      testEvent(3, 3),
			user:       testUser(),
			wantStatus: RegistrationStatusWaitlisted,
		},
		{
			name:       "waitlisted when confirmed exceeds capacity",
			event:      testEvent(3, 5),
			user:       testUser(),
			wantStatus: RegistrationStatusWaitlisted,
		},
		{
			name:    "nil event",
			event:   nil,
			user:    testUser(),
			wantErr: true,
		},
		{
			name:    "nil user",
			event:   testEvent(10, 0),
			user:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewEventRegistration(tt.event, tt.user, "", testNow)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, reg.ID)
			assert.Equal(t, tt.wantStatus, reg.Status)
			assert.Nil(t, reg.PositionInQueue)

			events := reg.PullEvents()
			require.Len(t, events, 1)
			created, ok := events[0].(RegistrationCreated)
			require.True(t, ok)
			assert.Equal(t, reg.ID, created.RegistrationID)
			assert.Equal(t, tt.wantStatus, created.Status)
		})
	}
}

func TestEventRegistration_Confirm(t *testing.T) {
	t.Run("promotes a waitlisted registration", func(t *testing.T) {
		reg, err := NewEventRegistration(testEvent(1, 1), testUser(), "", testNow)
		require.NoError(t, err)
		require.NoError(t, reg.UpdateWaitlistPosition(1, testNow))
		reg.PullEvents()

		require.NoError(t, reg.Confirm(testNow))
		assert.Equal(t, RegistrationStatusConfirmed, reg.Status)
		assert.Nil(t, reg.PositionInQueue)

		events := reg.PullEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(RegistrationPromoted)
		require.True(t, ok)
	})

	t.Run("confirming a pending registration emits no promotion", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusPending}
		require.NoError(t, reg.Confirm(testNow))
		assert.Equal(t, RegistrationStatusConfirmed, reg.Status)
		assert.Empty(t, reg.PullEvents())
	})

	t.Run("no-op when already confirmed", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusConfirmed}
		require.NoError(t, reg.Confirm(testNow))
		assert.Empty(t, reg.PullEvents())
	})

	t.Run("invalid from cancelled", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusCancelled}
		err := reg.Confirm(testNow)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("invalid from attended", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusAttended}
		require.ErrorIs(t, reg.Confirm(testNow), ErrInvalidTransition)
	})
}

func TestEventRegistration_Cancel(t *testing.T) {
	t.Run("cancelling a confirmed registration records the previous status", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", EventID: "ev-1", Status: RegistrationStatusConfirmed}
		reg.Cancel(testNow)
		assert.Equal(t, RegistrationStatusCancelled, reg.Status)

		events := reg.PullEvents()
		require.Len(t, events, 1)
		cancelled, ok := events[0].(RegistrationCancelled)
		require.True(t, ok)
		assert.Equal(t, RegistrationStatusConfirmed, cancelled.PreviousStatus)
	})

	t.Run("cancelling a waitlisted registration clears the position", func(t *testing.T) {
		pos := 3
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusWaitlisted, PositionInQueue: &pos}
		reg.Cancel(testNow)
		assert.Equal(t, RegistrationStatusCancelled, reg.Status)
		assert.Nil(t, reg.PositionInQueue)

		events := reg.PullEvents()
		require.Len(t, events, 1)
		cancelled := events[0].(RegistrationCancelled)
		assert.Equal(t, RegistrationStatusWaitlisted, cancelled.PreviousStatus)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusConfirmed}
		reg.Cancel(testNow)
		reg.PullEvents()
		reg.Cancel(testNow)
		assert.Empty(t, reg.PullEvents())
	})
}

func TestEventRegistration_Attendance(t *testing.T) {
	t.Run("attended from confirmed", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusConfirmed}
		require.NoError(t, reg.MarkAsAttended(testNow))
		assert.Equal(t, RegistrationStatusAttended, reg.Status)
	})

	t.Run("no-show from confirmed", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusConfirmed}
		require.NoError(t, reg.MarkAsNoShow(testNow))
		assert.Equal(t, RegistrationStatusNoShow, reg.Status)
	})

	t.Run("attended invalid from waitlisted", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusWaitlisted}
		require.ErrorIs(t, reg.MarkAsAttended(testNow), ErrInvalidTransition)
	})

	t.Run("no-show invalid from cancelled", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusCancelled}
		require.ErrorIs(t, reg.MarkAsNoShow(testNow), ErrInvalidTransition)
	})
}

func TestEventRegistration_UpdateWaitlistPosition(t *testing.T) {
	pos := 7
	tests := []struct {
		name        string
		reg         *EventRegistration
		newPosition int
		wantErr     error
		wantEvents  int
	}{
		{
			name:        "assigns a position",
			reg:         &EventRegistration{ID: "reg-1", Status: RegistrationStatusWaitlisted},
			newPosition: 4,
			wantEvents:  1,
		},
		{
			name:        "same position is a no-op",
			reg:         &EventRegistration{ID: "reg-1", Status: RegistrationStatusWaitlisted, PositionInQueue: &pos},
			newPosition: 7,
			wantEvents:  0,
		},
		{
			name:        "not waitlisted",
			reg:         &EventRegistration{ID: "reg-1", Status: RegistrationStatusConfirmed},
			newPosition: 1,
			wantErr:     ErrNotWaitlisted,
		},
		{
			name:        "non-positive position",
			reg:         &EventRegistration{ID: "reg-1", Status: RegistrationStatusWaitlisted},
			newPosition: 0,
			wantErr:     ErrInvalidPosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.UpdateWaitlistPosition(tt.newPosition, testNow)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tt.reg.PositionInQueue)
			assert.Equal(t, tt.newPosition, *tt.reg.PositionInQueue)
			assert.Len(t, tt.reg.PullEvents(), tt.wantEvents)
		})
	}
}

func TestEventRegistration_RemoveFromWaitlist(t *testing.T) {
	t.Run("cancels and records the vacated position", func(t *testing.T) {
		pos := 2
		reg := &EventRegistration{ID: "reg-1", EventID: "ev-1", Status: RegistrationStatusWaitlisted, PositionInQueue: &pos}
		require.NoError(t, reg.RemoveFromWaitlist("user request", testNow))
		assert.Equal(t, RegistrationStatusCancelled, reg.Status)
		assert.Nil(t, reg.PositionInQueue)

		events := reg.PullEvents()
		require.Len(t, events, 1)
		removal := events[0].(WaitlistRemoval)
		assert.Equal(t, 2, removal.Position)
		assert.Equal(t, "user request", removal.Reason)
	})

	t.Run("invalid when not waitlisted", func(t *testing.T) {
		reg := &EventRegistration{ID: "reg-1", Status: RegistrationStatusConfirmed}
		require.ErrorIs(t, reg.RemoveFromWaitlist("", testNow), ErrNotWaitlisted)
	})
}

func TestEventRegistration_IsWaitlisted(t *testing.T) {
	pos := 1
	zero := 0
	tests := []struct {
		name string
		reg  *EventRegistration
		want bool
	}{
		{"waitlisted with position", &EventRegistration{Status: RegistrationStatusWaitlisted, PositionInQueue: &pos}, true},
		{"waitlisted without position", &EventRegistration{Status: RegistrationStatusWaitlisted}, false},
		{"waitlisted with zero position", &EventRegistration{Status: RegistrationStatusWaitlisted, PositionInQueue: &zero}, false},
		{"confirmed with stale position", &EventRegistration{Status: RegistrationStatusConfirmed, PositionInQueue: &pos}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reg.IsWaitlisted())
		})
	}
}
