package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"clinic-care/internal/domain/sessions"

	"github.com/jmoiron/sqlx"
)

type SessionsRepo struct {
	db *sqlx.DB
}

func NewSessionsRepo(db *sqlx.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

type sessionRow struct {
	ID            string    `db:"id"`
	ProgramID     string    `db:"program_id"`
	Capacity      int       `db:"capacity"`
	BookedCount   int       `db:"booked_count"`
	ScheduledDate time.Time `db:"scheduled_date"`
	StartTime     string    `db:"start_time"`
	EndTime       string    `db:"end_time"`
	IsActive      bool      `db:"is_active"`
	Version       int64     `db:"version"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type bookingRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	SubjectID string    `db:"subject_id"`
	Status    string    `db:"status"`
	BookedAt  time.Time `db:"booked_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const (
	sessionColumns = `id, program_id, capacity, booked_count, scheduled_date, start_time, end_time, is_active, version, created_at, updated_at`
	bookingColumns = `id, session_id, subject_id, status, booked_at, updated_at`
)

func (r *SessionsRepo) GetSession(ctx context.Context, id string) (sessions.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sessions.Session{}, sessions.ErrSessionNotFound
		}
		return sessions.Session{}, err
	}
	return row.toDomain(), nil
}

func (r *SessionsRepo) GetBooking(ctx context.Context, id string) (sessions.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return sessions.Booking{}, sessions.ErrBookingNotFound
	}

	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sessions.Booking{}, sessions.ErrBookingNotFound
		}
		return sessions.Booking{}, err
	}
	return row.toDomain(), nil
}

func (r *SessionsRepo) FindActiveBooking(ctx context.Context, sessionID, subjectID string) (sessions.Booking, error) {
	var row bookingRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE session_id = $1 AND subject_id = $2 AND status IN ('booked', 'attended')
		LIMIT 1
	`, sessionID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sessions.Booking{}, sessions.ErrBookingNotFound
		}
		return sessions.Booking{}, err
	}
	return row.toDomain(), nil
}

func (r *SessionsRepo) ListBookings(ctx context.Context, sessionID string) ([]sessions.Booking, error) {
	var rows []bookingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE session_id = $1
		ORDER BY booked_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]sessions.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Commit: una transacción. El UPDATE con version = $3 es el compare-and-set;
// si no afecta filas, otro escritor ganó (o la sesión no existe).
func (r *SessionsRepo) Commit(ctx context.Context, c sessions.Change) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET booked_count = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
	`, c.SessionID, c.BookedCount, c.ExpectedVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, c.SessionID); err != nil {
			return err
		}
		if !exists {
			return sessions.ErrSessionNotFound
		}
		return sessions.ErrStaleSession
	}

	switch {
	case c.Insert != nil:
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO bookings (id, session_id, subject_id, status, booked_at, updated_at)
			VALUES (:id, :session_id, :subject_id, :status, :booked_at, :updated_at)
		`, toBookingRow(*c.Insert))
		if err != nil {
			if isUniqueViolation(err) {
				return sessions.ErrDuplicateBooking
			}
			return err
		}

	case c.Update != nil:
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1
		`, c.Update.ID, string(c.Update.Status), c.Update.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return sessions.ErrDuplicateBooking
			}
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sessions.ErrBookingNotFound
		}

	case c.DeleteID != "":
		res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, c.DeleteID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sessions.ErrBookingNotFound
		}
	}

	return tx.Commit()
}

func (row sessionRow) toDomain() sessions.Session {
	return sessions.Session{
		ID:            row.ID,
		ProgramID:     row.ProgramID,
		Capacity:      row.Capacity,
		BookedCount:   row.BookedCount,
		ScheduledDate: row.ScheduledDate,
		StartTime:     row.StartTime,
		EndTime:       row.EndTime,
		IsActive:      row.IsActive,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func (row bookingRow) toDomain() sessions.Booking {
	return sessions.Booking{
		ID:        row.ID,
		SessionID: row.SessionID,
		SubjectID: row.SubjectID,
		Status:    sessions.BookingStatus(row.Status),
		BookedAt:  row.BookedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toBookingRow(b sessions.Booking) bookingRow {
	return bookingRow{
		ID:        b.ID,
		SessionID: b.SessionID,
		SubjectID: b.SubjectID,
		Status:    string(b.Status),
		BookedAt:  b.BookedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
