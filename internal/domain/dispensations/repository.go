package dispensations

import (
	"context"
	"time"
)

// Repository es el Dispensation Ledger más las lecturas de paciente/medicación.
type Repository interface {
	PatientExists(ctx context.Context, patientID string) (bool, error)

	// GetMedication devuelve ErrMedicationNotFound si no existe.
	GetMedication(ctx context.Context, id string) (Medication, error)

	// LatestInWindow busca la dispensación más reciente con DispensedDate en [from, to).
	LatestInWindow(ctx context.Context, patientID, medicationID string, from, to time.Time) (Dispensation, bool, error)

	// Append agrega la fila. Si (patient, medication, window_key) ya existe devuelve ErrWindowTaken.
	Append(ctx context.Context, d Dispensation) error

	// ListByPatient devuelve el historial, más reciente primero.
	ListByPatient(ctx context.Context, patientID, medicationID string, limit int) ([]Dispensation, error)
}
