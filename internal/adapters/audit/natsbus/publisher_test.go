package natsbus

import (
	"testing"

	"clinic-care/internal/domain/audit"

	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	require.Equal(t, "audit.medication.dispensed", Subject(audit.Entry{Payload: audit.MedicationDispensed{}}))
	require.Equal(t, "audit.unknown", Subject(audit.Entry{}))
}

func TestConnect_FailsWithoutServer(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "clinic-care-test")
	require.Error(t, err)
}
