package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/domain/errs"
	"clinic-care/internal/platform/keylock"
	"clinic-care/internal/platform/logger"
	"clinic-care/internal/platform/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxAttempts = 5

var tracer = otel.Tracer("clinic-care/sessions")

type Options struct {
	Audit  *audit.Recorder
	Logger logger.Logger

	// MaxAttempts acota los reintentos ante ErrStaleSession (default 5).
	MaxAttempts int
}

// Service es el Session Capacity Manager.
// Toda mutación del contador pasa por: lock por sesión -> leer -> decidir -> Commit (CAS).
type Service struct {
	repo  Repository
	audit *audit.Recorder
	log   logger.Logger
	locks *keylock.Locker

	now         func() time.Time
	maxAttempts int
}

func NewService(repo Repository, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &Service{
		repo:        repo,
		audit:       opts.Audit,
		log:         log.With(map[string]any{"component": "sessions"}),
		locks:       keylock.New(),
		now:         time.Now,
		maxAttempts: attempts,
	}
}

func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, errs.New(errs.ErrInvalidInput, "session id required")
	}
	return s.repo.GetSession(ctx, id)
}

func (s *Service) GetBooking(ctx context.Context, id string) (Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Booking{}, errs.New(errs.ErrInvalidInput, "booking id required")
	}
	return s.repo.GetBooking(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, sessionID string) ([]Booking, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx, sess.ID)
}

// CreateBooking reserva un cupo de la sesión para subjectID.
func (s *Service) CreateBooking(ctx context.Context, sessionID, subjectID string) (_ Booking, err error) {
	ctx, span := tracer.Start(ctx, "sessions.CreateBooking", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer func() { s.finish(span, "create", err) }()

	sessionID = strings.TrimSpace(sessionID)
	subjectID = strings.TrimSpace(subjectID)
	if sessionID == "" || subjectID == "" {
		return Booking{}, errs.New(errs.ErrInvalidInput, "session id and subject id are required")
	}

	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return Booking{}, err
	}
	defer unlock()

	var (
		created Booking
		after   Session
	)
	err = s.retry(ctx, func() error {
		sess, err := s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		hasActive := true
		if _, err := s.repo.FindActiveBooking(ctx, sessionID, subjectID); err != nil {
			if !errors.Is(err, ErrBookingNotFound) {
				return err
			}
			hasActive = false
		}

		if err := checkAdmission(sess, hasActive); err != nil {
			return err
		}

		now := s.now()
		b := Booking{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			SubjectID: subjectID,
			Status:    StatusBooked,
			BookedAt:  now,
			UpdatedAt: now,
		}

		if err := s.repo.Commit(ctx, Change{
			SessionID:       sessionID,
			ExpectedVersion: sess.Version,
			BookedCount:     sess.BookedCount + 1,
			Insert:          &b,
		}); err != nil {
			return err
		}

		created = b
		after = sess
		after.BookedCount++
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		TargetType:  audit.TargetBooking,
		TargetID:    created.ID,
		Description: fmt.Sprintf("subject %s booked session %s", subjectID, sessionID),
		Payload: audit.BookingCreated{
			SessionID:   sessionID,
			SubjectID:   subjectID,
			BookedCount: after.BookedCount,
			Capacity:    after.Capacity,
		},
	})

	return created, nil
}

// UpdateBookingStatus aplica una transición desde booked. Cualquier otra
// (incluida re-aplicar el estado actual) es Conflict.
func (s *Service) UpdateBookingStatus(ctx context.Context, bookingID string, status BookingStatus) (Booking, error) {
	return s.transition(ctx, "status", bookingID, status)
}

// CancelBooking es booked -> cancelled; si ya estaba cancelada devuelve ErrAlreadyCancelled.
func (s *Service) CancelBooking(ctx context.Context, bookingID string) (Booking, error) {
	return s.transition(ctx, "cancel", bookingID, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, op, bookingID string, to BookingStatus) (_ Booking, err error) {
	ctx, span := tracer.Start(ctx, "sessions.UpdateBookingStatus", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.String("booking.to", string(to)),
	))
	defer func() { s.finish(span, op, err) }()

	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Booking{}, errs.New(errs.ErrInvalidInput, "booking id required")
	}
	if !to.Valid() {
		return Booking{}, errs.New(errs.ErrInvalidInput, "unknown booking status")
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}

	unlock, err := s.lock(ctx, b.SessionID)
	if err != nil {
		return Booking{}, err
	}
	defer unlock()

	var (
		updated Booking
		from    BookingStatus
		count   int
	)
	err = s.retry(ctx, func() error {
		// releer dentro de la sección crítica: pudo cambiar mientras esperábamos
		cur, err := s.repo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		sess, err := s.repo.GetSession(ctx, cur.SessionID)
		if err != nil {
			return err
		}

		if err := checkTransition(cur.Status, to); err != nil {
			return err
		}

		next := cur
		next.Status = to
		next.UpdatedAt = s.now()
		n := floorCount(sess.BookedCount, seatDelta(cur.Status, to))

		if err := s.repo.Commit(ctx, Change{
			SessionID:       sess.ID,
			ExpectedVersion: sess.Version,
			BookedCount:     n,
			Update:          &next,
		}); err != nil {
			return err
		}

		updated, from, count = next, cur.Status, n
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		TargetType:  audit.TargetBooking,
		TargetID:    updated.ID,
		Description: fmt.Sprintf("booking %s: %s -> %s", updated.ID, from, to),
		Payload: audit.BookingStatusChanged{
			SessionID:   updated.SessionID,
			From:        string(from),
			To:          string(to),
			BookedCount: count,
		},
	})

	return updated, nil
}

// RemoveBooking borra la fila (acción administrativa). Un segundo llamado devuelve NotFound.
func (s *Service) RemoveBooking(ctx context.Context, bookingID string) (err error) {
	ctx, span := tracer.Start(ctx, "sessions.RemoveBooking", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer func() { s.finish(span, "remove", err) }()

	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return errs.New(errs.ErrInvalidInput, "booking id required")
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, b.SessionID)
	if err != nil {
		return err
	}
	defer unlock()

	var (
		removed Booking
		count   int
	)
	err = s.retry(ctx, func() error {
		cur, err := s.repo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		sess, err := s.repo.GetSession(ctx, cur.SessionID)
		if err != nil {
			return err
		}

		delta := 0
		if cur.Status.HoldsSeat() {
			delta = -1
		}
		n := floorCount(sess.BookedCount, delta)

		if err := s.repo.Commit(ctx, Change{
			SessionID:       sess.ID,
			ExpectedVersion: sess.Version,
			BookedCount:     n,
			DeleteID:        cur.ID,
		}); err != nil {
			return err
		}

		removed, count = cur, n
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		TargetType:  audit.TargetBooking,
		TargetID:    removed.ID,
		Description: fmt.Sprintf("booking %s removed from session %s", removed.ID, removed.SessionID),
		Payload: audit.BookingRemoved{
			SessionID:   removed.SessionID,
			SubjectID:   removed.SubjectID,
			Status:      string(removed.Status),
			BookedCount: count,
		},
	})
	return nil
}

// Reconcile recalcula BookedCount desde las reservas que ocupan cupo.
// Sirve para reparar contadores que derivaron (datos cargados a mano, bugs viejos).
func (s *Service) Reconcile(ctx context.Context, sessionID string) (_ Session, err error) {
	ctx, span := tracer.Start(ctx, "sessions.Reconcile", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer func() { s.finish(span, "reconcile", err) }()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, errs.New(errs.ErrInvalidInput, "session id required")
	}

	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	var (
		result   Session
		previous int
	)
	err = s.retry(ctx, func() error {
		sess, err := s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		items, err := s.repo.ListBookings(ctx, sessionID)
		if err != nil {
			return err
		}

		n := 0
		for _, b := range items {
			if b.Status.HoldsSeat() {
				n++
			}
		}

		if err := s.repo.Commit(ctx, Change{
			SessionID:       sessionID,
			ExpectedVersion: sess.Version,
			BookedCount:     n,
		}); err != nil {
			return err
		}

		previous = sess.BookedCount
		result = sess
		result.BookedCount = n
		result.Version++
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	if previous != result.BookedCount {
		s.log.Warn("booked_count drift corrected", map[string]any{
			"session_id": sessionID,
			"previous":   previous,
			"current":    result.BookedCount,
		})
		s.audit.Record(ctx, audit.Entry{
			TargetType:  audit.TargetSession,
			TargetID:    sessionID,
			Description: fmt.Sprintf("session %s booked count %d -> %d", sessionID, previous, result.BookedCount),
			Payload:     audit.SessionReconciled{Previous: previous, Current: result.BookedCount},
		})
	}

	return result, nil
}

func (s *Service) lock(ctx context.Context, sessionID string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	return unlock, nil
}

// retry reejecuta fn mientras el commit choque con una versión obsoleta,
// hasta maxAttempts. Cualquier otro error (o nil) corta el loop.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := fn()
		if !errors.Is(err, ErrStaleSession) {
			return err
		}

		metrics.CommitRetries.Inc()
		s.log.Debug("stale session version, retrying", map[string]any{"attempt": attempt})

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrContention
}

func (s *Service) finish(span trace.Span, op string, err error) {
	metrics.BookingOutcomes.WithLabelValues(op, outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrConflict):
		return "conflict"
	case errors.Is(err, errs.ErrBadRequest), errors.Is(err, errs.ErrInvalidInput):
		return "bad_request"
	default:
		return "error"
	}
}
