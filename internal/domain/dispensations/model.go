package dispensations

import (
	"time"

	"clinic-care/internal/domain/errs"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// Medication es la prescripción (solo lectura para este motor).
type Medication struct {
	ID        string
	PatientID string
	ProgramID string
	Name      string
	Frequency Frequency
}

// Dispensation es append-only. NextDueDate y WindowKey se fijan al dispensar.
type Dispensation struct {
	ID           string
	MedicationID string
	PatientID    string

	DispensedDate time.Time
	Quantity      int
	NextDueDate   time.Time
	WindowKey     string

	CreatedAt time.Time
}

// Eligibility es el resultado de CheckEligibility.
// Reason y NextDueDate solo vienen cuando Eligible=false.
type Eligibility struct {
	Eligible    bool
	Reason      string
	NextDueDate *time.Time

	Window Window
	Last   *Dispensation
}

var (
	ErrPatientNotFound    = errs.New(errs.ErrNotFound, "patient not found")
	ErrMedicationNotFound = errs.New(errs.ErrNotFound, "medication not found")

	ErrUnknownFrequency = errs.New(errs.ErrInvalidInput, "unknown medication frequency")
	ErrInvalidQuantity  = errs.New(errs.ErrInvalidInput, "quantity must be greater than zero")
	ErrInvalidDate      = errs.New(errs.ErrInvalidInput, "date must be YYYY-MM-DD or RFC3339")

	ErrIneligible = errs.New(errs.ErrConflict, "medication not eligible for dispensation")

	// ErrWindowTaken lo devuelve Repository.Append cuando ya existe una dispensación
	// para (patient, medication, window_key). Pasa si otro proceso escribió primero.
	ErrWindowTaken = errs.New(errs.ErrConflict, "dispensation window already taken")
)

// IneligibleError es el Conflict de Dispense; lleva el mismo payload que CheckEligibility.
type IneligibleError struct {
	Eligibility Eligibility
}

func (e *IneligibleError) Error() string {
	return ErrIneligible.Error() + ": " + e.Eligibility.Reason
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }
