package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreatePatientsAndMedications, downCreatePatientsAndMedications)
}

func upCreatePatientsAndMedications(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE patients (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE medications (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
			program_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL CHECK (frequency IN ('daily', 'weekly', 'monthly')),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreatePatientsAndMedications(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS medications; DROP TABLE IF EXISTS patients;`

	_, err := tx.ExecContext(ctx, query)
	return err
}
