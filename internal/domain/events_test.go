package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDomainEvent(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rehydrates a cancelled event with its previous status", func(t *testing.T) {
		original := RegistrationCancelled{
			RegistrationID: "reg-1",
			EventID:        "ev-1",
			UserID:         "user-1",
			PreviousStatus: RegistrationStatusWaitlisted,
			Occurred:       occurred,
		}
		payload, err := json.Marshal(original)
		require.NoError(t, err)

		decoded, err := DecodeDomainEvent(EventTypeRegistrationCancelled, payload)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	})

	t.Run("every known type decodes to its concrete struct", func(t *testing.T) {
		for _, eventType := range AllEventTypes() {
			decoded, err := DecodeDomainEvent(eventType, []byte(`{}`))
			require.NoError(t, err, eventType)
			assert.Equal(t, eventType, decoded.EventType())
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodeDomainEvent("SomethingElse", []byte(`{}`))
		require.Error(t, err)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := DecodeDomainEvent(EventTypeRegistrationCreated, []byte(`{not json`))
		require.Error(t, err)
	})
}

func TestNewOutboxMessage(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := occurred.Add(time.Millisecond)

	msg, err := NewOutboxMessage(RegistrationPromoted{
		RegistrationID: "reg-1",
		EventID:        "ev-1",
		UserID:         "user-1",
		Occurred:       occurred,
	}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, EventTypeRegistrationPromoted, msg.EventType)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.Equal(t, occurred, msg.OccurredAt)
	assert.Equal(t, now, msg.CreatedAt)
	assert.Equal(t, now, msg.NextAttemptAt)

	decoded, err := DecodeDomainEvent(msg.EventType, msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "reg-1", decoded.(RegistrationPromoted).RegistrationID)
}
