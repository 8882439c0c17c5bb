package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"clinic-care/internal/domain/dispensations"

	"github.com/jmoiron/sqlx"
)

type DispensationsRepo struct {
	db *sqlx.DB
}

func NewDispensationsRepo(db *sqlx.DB) *DispensationsRepo {
	return &DispensationsRepo{db: db}
}

type medicationRow struct {
	ID        string `db:"id"`
	PatientID string `db:"patient_id"`
	ProgramID string `db:"program_id"`
	Name      string `db:"name"`
	Frequency string `db:"frequency"`
}

type dispensationRow struct {
	ID            string    `db:"id"`
	MedicationID  string    `db:"medication_id"`
	PatientID     string    `db:"patient_id"`
	DispensedDate time.Time `db:"dispensed_date"`
	Quantity      int       `db:"quantity"`
	NextDueDate   time.Time `db:"next_due_date"`
	WindowKey     string    `db:"window_key"`
	CreatedAt     time.Time `db:"created_at"`
}

const dispensationColumns = `id, medication_id, patient_id, dispensed_date, quantity, next_due_date, window_key, created_at`

func (r *DispensationsRepo) PatientExists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`, patientID)
	return exists, err
}

func (r *DispensationsRepo) GetMedication(ctx context.Context, id string) (dispensations.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return dispensations.Medication{}, dispensations.ErrMedicationNotFound
	}

	var row medicationRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, patient_id, program_id, name, frequency
		FROM medications
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dispensations.Medication{}, dispensations.ErrMedicationNotFound
		}
		return dispensations.Medication{}, err
	}

	return dispensations.Medication{
		ID:        row.ID,
		PatientID: row.PatientID,
		ProgramID: row.ProgramID,
		Name:      row.Name,
		Frequency: dispensations.Frequency(row.Frequency),
	}, nil
}

func (r *DispensationsRepo) LatestInWindow(ctx context.Context, patientID, medicationID string, from, to time.Time) (dispensations.Dispensation, bool, error) {
	var row dispensationRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+dispensationColumns+`
		FROM dispensations
		WHERE patient_id = $1 AND medication_id = $2
		  AND dispensed_date >= $3 AND dispensed_date < $4
		ORDER BY dispensed_date DESC
		LIMIT 1
	`, patientID, medicationID, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dispensations.Dispensation{}, false, nil
		}
		return dispensations.Dispensation{}, false, err
	}
	return row.toDomain(), true, nil
}

// Append confía en ux_dispensations_window: si otra instancia ya escribió la ventana,
// ON CONFLICT no inserta y devolvemos ErrWindowTaken.
func (r *DispensationsRepo) Append(ctx context.Context, d dispensations.Dispensation) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO dispensations (`+dispensationColumns+`)
		VALUES (:id, :medication_id, :patient_id, :dispensed_date, :quantity, :next_due_date, :window_key, :created_at)
		ON CONFLICT (patient_id, medication_id, window_key) DO NOTHING
	`, toDispensationRow(d))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dispensations.ErrWindowTaken
	}
	return nil
}

func (r *DispensationsRepo) ListByPatient(ctx context.Context, patientID, medicationID string, limit int) ([]dispensations.Dispensation, error) {
	var rows []dispensationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+dispensationColumns+`
		FROM dispensations
		WHERE patient_id = $1 AND medication_id = $2
		ORDER BY dispensed_date DESC
		LIMIT $3
	`, patientID, medicationID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]dispensations.Dispensation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (row dispensationRow) toDomain() dispensations.Dispensation {
	return dispensations.Dispensation{
		ID:            row.ID,
		MedicationID:  row.MedicationID,
		PatientID:     row.PatientID,
		DispensedDate: row.DispensedDate,
		Quantity:      row.Quantity,
		NextDueDate:   row.NextDueDate,
		WindowKey:     row.WindowKey,
		CreatedAt:     row.CreatedAt,
	}
}

func toDispensationRow(d dispensations.Dispensation) dispensationRow {
	return dispensationRow{
		ID:            d.ID,
		MedicationID:  d.MedicationID,
		PatientID:     d.PatientID,
		DispensedDate: d.DispensedDate,
		Quantity:      d.Quantity,
		NextDueDate:   d.NextDueDate,
		WindowKey:     d.WindowKey,
		CreatedAt:     d.CreatedAt,
	}
}
