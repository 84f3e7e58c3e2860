package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(48 * time.Hour)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name      string
		eventName string
		organizer string
		capacity  int
		start     time.Time
		end       time.Time
		wantErr   bool
	}{
		{"valid", "GopherCon", "org-1", 100, start, end, false},
		{"valid without end time", "GopherCon", "org-1", 100, start, time.Time{}, false},
		{"missing name", "", "org-1", 100, start, end, true},
		{"missing organizer", "GopherCon", "", 100, start, end, true},
		{"zero capacity", "GopherCon", "org-1", 0, start, end, true},
		{"negative capacity", "GopherCon", "org-1", -5, start, end, true},
		{"end before start", "GopherCon", "org-1", 100, start, start.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NewEvent(tt.eventName, "", "UTC", "Berlin", tt.organizer, tt.start, tt.end, tt.capacity, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, event.Published, "new events start as drafts")
			assert.Equal(t, tt.capacity, event.Capacity)
		})
	}
}

func TestEvent_IsFull(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		confirmed int
		want      bool
	}{
		{"free seats", 10, 9, false},
		{"exactly full", 10, 10, true},
		{"over capacity", 10, 11, true},
		{"empty", 10, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{Capacity: tt.capacity, ConfirmedCount: tt.confirmed}
			assert.Equal(t, tt.want, e.IsFull())
		})
	}
}

func TestEvent_PublishUnpublish(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := &Event{ID: "ev-1"}

	e.Publish(now)
	assert.True(t, e.Published)

	// Idempotent; UpdatedAt stays at the first publish time.
	e.Publish(now.Add(time.Hour))
	assert.Equal(t, now, e.UpdatedAt)

	e.Unpublish(now.Add(2 * time.Hour))
	assert.False(t, e.Published)
}

func TestEvent_IncreaseCapacity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("raises capacity and emits an event", func(t *testing.T) {
		e := &Event{ID: "ev-1", Capacity: 10}
		require.NoError(t, e.IncreaseCapacity(5, now))
		assert.Equal(t, 15, e.Capacity)

		events := e.PullEvents()
		require.Len(t, events, 1)
		increased, ok := events[0].(EventCapacityIncreased)
		require.True(t, ok)
		assert.Equal(t, 5, increased.AdditionalCapacity)
		assert.Equal(t, 15, increased.NewCapacity)
	})

	t.Run("rejects zero and negative deltas", func(t *testing.T) {
		e := &Event{ID: "ev-1", Capacity: 10}
		require.Error(t, e.IncreaseCapacity(0, now))
		require.Error(t, e.IncreaseCapacity(-3, now))
		assert.Equal(t, 10, e.Capacity)
		assert.Empty(t, e.PullEvents())
	})
}
