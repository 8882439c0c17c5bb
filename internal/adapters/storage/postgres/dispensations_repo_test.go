package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/domain/dispensations"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestDispensationsRepo_Append_WindowTaken(t *testing.T) {
	db, mock := newMock(t)
	r := NewDispensationsRepo(db)

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d := dispensations.Dispensation{
		ID: "d-1", MedicationID: "m-1", PatientID: "p-1",
		DispensedDate: day, Quantity: 1, NextDueDate: day.AddDate(0, 0, 1),
		WindowKey: "daily:2024-01-10", CreatedAt: day,
	}

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (patient_id, medication_id, window_key) DO NOTHING`)).
		WithArgs("d-1", "m-1", "p-1", day, 1, day.AddDate(0, 0, 1), "daily:2024-01-10", day).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.Append(context.Background(), d)
	require.ErrorIs(t, err, dispensations.ErrWindowTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispensationsRepo_Append_Inserted(t *testing.T) {
	db, mock := newMock(t)
	r := NewDispensationsRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dispensations`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Append(context.Background(), dispensations.Dispensation{ID: "d-1", Quantity: 1, WindowKey: "monthly:2024-01"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispensationsRepo_LatestInWindow(t *testing.T) {
	db, mock := newMock(t)
	r := NewDispensationsRepo(db)

	from := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	mock.ExpectQuery(regexp.QuoteMeta(`AND dispensed_date >= $3 AND dispensed_date < $4`)).
		WithArgs("p-1", "m-1", from, to).
		WillReturnError(sql.ErrNoRows)

	_, found, err := r.LatestInWindow(context.Background(), "p-1", "m-1", from, to)
	require.NoError(t, err)
	require.False(t, found)

	rows := sqlmock.NewRows([]string{
		"id", "medication_id", "patient_id", "dispensed_date", "quantity", "next_due_date", "window_key", "created_at",
	}).AddRow("d-1", "m-1", "p-1", from, 2, to, "weekly:2024-W02", from)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM dispensations`)).
		WithArgs("p-1", "m-1", from, to).
		WillReturnRows(rows)

	d, found, err := r.LatestInWindow(context.Background(), "p-1", "m-1", from, to)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "weekly:2024-W02", d.WindowKey)
	require.True(t, d.NextDueDate.Equal(to))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispensationsRepo_GetMedication_NotFound(t *testing.T) {
	db, mock := newMock(t)
	r := NewDispensationsRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM medications`)).
		WithArgs("m-x").
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetMedication(context.Background(), "m-x")
	require.ErrorIs(t, err, dispensations.ErrMedicationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditSink_Append(t *testing.T) {
	db, mock := newMock(t)
	s := NewAuditSink(db)

	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	e := audit.Entry{
		ID:         "e-1",
		ActorID:    "nurse-1",
		TargetType: audit.TargetSession,
		TargetID:   "s-1",
		Payload:    audit.SessionReconciled{Previous: 4, Current: 2},
		OccurredAt: at,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_logs`)).
		WithArgs("e-1", "session.reconciled", "nurse-1", "session", "s-1", "", `{"previous":4,"current":2}`, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Append(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}
