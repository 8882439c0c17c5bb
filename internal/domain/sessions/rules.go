package sessions

import (
	"clinic-care/internal/domain/errs"
)

var (
	ErrSessionNotFound   = errs.New(errs.ErrNotFound, "session not found")
	ErrBookingNotFound   = errs.New(errs.ErrNotFound, "booking not found")
	ErrSessionInactive   = errs.New(errs.ErrBadRequest, "session is not active")
	ErrSessionFull       = errs.New(errs.ErrConflict, "session is full")
	ErrDuplicateBooking  = errs.New(errs.ErrConflict, "subject already has an active booking for this session")
	ErrIllegalTransition = errs.New(errs.ErrConflict, "illegal booking status transition")
	ErrAlreadyCancelled  = errs.New(errs.ErrConflict, "booking already cancelled")
	ErrContention        = errs.New(errs.ErrConflict, "session is busy, retry later")

	// ErrStaleSession lo devuelve Repository.Commit cuando la versión esperada
	// ya no coincide (otro proceso escribió primero). El Service reintenta.
	ErrStaleSession = errs.New(errs.ErrConflict, "session version changed")
)

// checkAdmission decide si se puede crear una reserva nueva.
// El orden de los checks define qué error ve el caller.
func checkAdmission(s Session, hasActive bool) error {
	if !s.IsActive {
		return ErrSessionInactive
	}
	if s.BookedCount >= s.Capacity {
		return ErrSessionFull
	}
	if hasActive {
		return ErrDuplicateBooking
	}
	return nil
}

// checkTransition: solo booked -> attended|missed|cancelled. Los estados finales no salen.
func checkTransition(from, to BookingStatus) error {
	if !to.Valid() {
		return errs.New(errs.ErrInvalidInput, "unknown booking status")
	}
	if from != StatusBooked {
		if from == StatusCancelled && to == StatusCancelled {
			return ErrAlreadyCancelled
		}
		return ErrIllegalTransition
	}
	switch to {
	case StatusAttended, StatusMissed, StatusCancelled:
		return nil
	default:
		return ErrIllegalTransition
	}
}

// seatDelta es el cambio del contador cuando una reserva pasa de from a to.
// booked -> missed libera el cupo: bookedCount cuenta solo booked/attended, así que
// una missed que siguiera contando rompería booked_count == reservas que ocupan cupo.
func seatDelta(from, to BookingStatus) int {
	switch {
	case from.HoldsSeat() && !to.HoldsSeat():
		return -1
	case !from.HoldsSeat() && to.HoldsSeat():
		return 1
	default:
		return 0
	}
}

// floorCount aplica el delta sin bajar de cero (los contadores pueden haber derivado).
func floorCount(count, delta int) int {
	n := count + delta
	if n < 0 {
		return 0
	}
	return n
}
