package sessions

import "context"

// Repository es el Booking Ledger. Las lecturas devuelven ErrSessionNotFound /
// ErrBookingNotFound cuando no hay fila.
type Repository interface {
	GetSession(ctx context.Context, id string) (Session, error)
	GetBooking(ctx context.Context, id string) (Booking, error)

	// FindActiveBooking busca una reserva booked/attended para (sessionID, subjectID).
	FindActiveBooking(ctx context.Context, sessionID, subjectID string) (Booking, error)
	ListBookings(ctx context.Context, sessionID string) ([]Booking, error)

	// Commit aplica el cambio de forma atómica: compara Version, escribe el contador
	// y la fila de reserva, e incrementa Version. Si la versión no coincide devuelve
	// ErrStaleSession sin escribir nada.
	Commit(ctx context.Context, c Change) error
}

// Change es el paso de commit explícito que produce el Service tras decidir.
// Exactamente uno de Insert/Update/DeleteID puede venir seteado (o ninguno, para
// reconciliar solo el contador).
type Change struct {
	SessionID       string
	ExpectedVersion int64
	BookedCount     int

	Insert   *Booking
	Update   *Booking
	DeleteID string
}
