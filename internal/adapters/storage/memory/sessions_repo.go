package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinic-care/internal/domain/sessions"
)

// SessionRepo es el Booking Ledger en memoria. Commit corre bajo un único lock,
// así contador y fila de reserva cambian juntos.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]sessions.Session
	bookings map[string]sessions.Booking
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{
		sessions: make(map[string]sessions.Session),
		bookings: make(map[string]sessions.Booking),
	}
}

// PutSession carga o reemplaza una sesión (seed/tests; la gestión de sesiones es externa).
func (r *SessionRepo) PutSession(s sessions.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	r.sessions[s.ID] = s
}

func (r *SessionRepo) GetSession(ctx context.Context, id string) (sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	return s, nil
}

func (r *SessionRepo) GetBooking(ctx context.Context, id string) (sessions.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return sessions.Booking{}, sessions.ErrBookingNotFound
	}
	return b, nil
}

func (r *SessionRepo) FindActiveBooking(ctx context.Context, sessionID, subjectID string) (sessions.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.activeLocked(sessionID, subjectID); ok {
		return b, nil
	}
	return sessions.Booking{}, sessions.ErrBookingNotFound
}

func (r *SessionRepo) ListBookings(ctx context.Context, sessionID string) ([]sessions.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sessions.Booking, 0)
	for _, b := range r.bookings {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}

	// BookedAt asc, desempate por ID
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].BookedAt.Before(out[j].BookedAt)
	})
	return out, nil
}

func (r *SessionRepo) Commit(ctx context.Context, c sessions.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[c.SessionID]
	if !ok {
		return sessions.ErrSessionNotFound
	}
	if s.Version != c.ExpectedVersion {
		return sessions.ErrStaleSession
	}

	switch {
	case c.Insert != nil:
		if _, exists := r.bookings[c.Insert.ID]; exists {
			return sessions.ErrDuplicateBooking
		}
		if c.Insert.Status.HoldsSeat() {
			if _, dup := r.activeLocked(c.Insert.SessionID, c.Insert.SubjectID); dup {
				return sessions.ErrDuplicateBooking
			}
		}
		r.bookings[c.Insert.ID] = *c.Insert

	case c.Update != nil:
		if _, exists := r.bookings[c.Update.ID]; !exists {
			return sessions.ErrBookingNotFound
		}
		r.bookings[c.Update.ID] = *c.Update

	case c.DeleteID != "":
		if _, exists := r.bookings[c.DeleteID]; !exists {
			return sessions.ErrBookingNotFound
		}
		delete(r.bookings, c.DeleteID)
	}

	s.BookedCount = c.BookedCount
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	r.sessions[s.ID] = s
	return nil
}

func (r *SessionRepo) activeLocked(sessionID, subjectID string) (sessions.Booking, bool) {
	for _, b := range r.bookings {
		if b.SessionID == sessionID && b.SubjectID == subjectID && b.Status.HoldsSeat() {
			return b, true
		}
	}
	return sessions.Booking{}, false
}
