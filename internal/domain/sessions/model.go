package sessions

import "time"

type BookingStatus string

const (
	StatusBooked    BookingStatus = "booked"
	StatusAttended  BookingStatus = "attended"
	StatusCancelled BookingStatus = "cancelled"
	StatusMissed    BookingStatus = "missed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusAttended, StatusCancelled, StatusMissed:
		return true
	default:
		return false
	}
}

// HoldsSeat indica si la reserva cuenta contra la capacidad de la sesión.
func (s BookingStatus) HoldsSeat() bool {
	return s == StatusBooked || s == StatusAttended
}

// Session es una instancia agendada de una actividad del programa, con cupo fijo.
// BookedCount solo lo modifica el Service; Version se incrementa en cada commit.
type Session struct {
	ID        string
	ProgramID string

	Capacity    int
	BookedCount int

	ScheduledDate time.Time
	StartTime     string // HH:MM
	EndTime       string // HH:MM

	IsActive bool
	Version  int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available devuelve los cupos libres (nunca negativo).
func (s Session) Available() int {
	if s.BookedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedCount
}

type Booking struct {
	ID        string
	SessionID string
	SubjectID string // usuario o paciente

	Status BookingStatus

	BookedAt  time.Time
	UpdatedAt time.Time
}
