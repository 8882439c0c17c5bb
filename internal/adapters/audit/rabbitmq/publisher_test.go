package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	"clinic-care/internal/domain/audit"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	msg, err := Message(audit.Entry{
		ID:         "e-1",
		TargetType: audit.TargetBooking,
		TargetID:   "b-1",
		Payload:    audit.BookingRemoved{SessionID: "s-1", Status: "booked", BookedCount: 0},
		OccurredAt: at,
	})
	require.NoError(t, err)

	require.Equal(t, "booking.removed", msg.Type)
	require.Equal(t, "e-1", msg.MessageId)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.True(t, msg.Timestamp.Equal(at))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	require.Equal(t, "booking.removed", body["type"])
}
