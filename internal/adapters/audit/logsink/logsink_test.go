package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/platform/logger"

	"github.com/stretchr/testify/require"
)

func TestSink_Append_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Info, Format: logger.FormatJSON, App: "clinic-care", Out: &buf})

	s := New(log)
	err := s.Append(context.Background(), audit.Entry{
		ID:         "e-1",
		ActorID:    "nurse-1",
		TargetType: audit.TargetBooking,
		TargetID:   "b-1",
		Payload:    audit.BookingStatusChanged{SessionID: "s-1", From: "booked", To: "missed"},
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "audit", line["message"])
	require.Equal(t, "booking.status_changed", line["type"])
	require.Equal(t, "nurse-1", line["actor_id"])
	require.Contains(t, line["payload"], `"to":"missed"`)
}
