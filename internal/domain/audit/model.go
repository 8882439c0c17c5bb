package audit

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindBookingCreated       Kind = "booking.created"
	KindBookingStatusChanged Kind = "booking.status_changed"
	KindBookingRemoved       Kind = "booking.removed"
	KindSessionReconciled    Kind = "session.reconciled"
	KindMedicationDispensed  Kind = "medication.dispensed"
)

type TargetType string

const (
	TargetBooking      TargetType = "booking"
	TargetSession      TargetType = "session"
	TargetDispensation TargetType = "dispensation"
)

// Payload es la variante tipada de cada entrada: un struct por Kind.
type Payload interface {
	Kind() Kind
}

type BookingCreated struct {
	SessionID   string `json:"session_id"`
	SubjectID   string `json:"subject_id"`
	BookedCount int    `json:"booked_count"`
	Capacity    int    `json:"capacity"`
}

func (BookingCreated) Kind() Kind { return KindBookingCreated }

type BookingStatusChanged struct {
	SessionID   string `json:"session_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	BookedCount int    `json:"booked_count"`
}

func (BookingStatusChanged) Kind() Kind { return KindBookingStatusChanged }

type BookingRemoved struct {
	SessionID   string `json:"session_id"`
	SubjectID   string `json:"subject_id"`
	Status      string `json:"status"`
	BookedCount int    `json:"booked_count"`
}

func (BookingRemoved) Kind() Kind { return KindBookingRemoved }

type SessionReconciled struct {
	Previous int `json:"previous"`
	Current  int `json:"current"`
}

func (SessionReconciled) Kind() Kind { return KindSessionReconciled }

type MedicationDispensed struct {
	PatientID     string    `json:"patient_id"`
	MedicationID  string    `json:"medication_id"`
	Frequency     string    `json:"frequency"`
	Quantity      int       `json:"quantity"`
	DispensedDate time.Time `json:"dispensed_date"`
	NextDueDate   time.Time `json:"next_due_date"`
}

func (MedicationDispensed) Kind() Kind { return KindMedicationDispensed }

// Entry es una línea del registro de actividad.
type Entry struct {
	ID          string
	ActorID     string
	TargetType  TargetType
	TargetID    string
	Description string
	Payload     Payload
	OccurredAt  time.Time
}

func (e Entry) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type entryJSON struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	ActorID     string          `json:"actor_id"`
	TargetType  TargetType      `json:"target_type"`
	TargetID    string          `json:"target_id"`
	Description string          `json:"description"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// MarshalJSON serializa el payload junto con su tag "type", que es lo que
// consumen los sinks externos (NATS, AMQP, webhook, jsonb).
func (e Entry) MarshalJSON() ([]byte, error) {
	payload, err := e.PayloadJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{
		ID:          e.ID,
		Type:        e.Kind(),
		ActorID:     e.ActorID,
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		Description: e.Description,
		Payload:     payload,
		OccurredAt:  e.OccurredAt,
	})
}

func (e Entry) PayloadJSON() ([]byte, error) {
	if e.Payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Payload)
}
