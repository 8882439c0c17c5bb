package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateDispensationsTable, downCreateDispensationsTable)
}

func upCreateDispensationsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE dispensations (
			id TEXT PRIMARY KEY,
			medication_id TEXT NOT NULL REFERENCES medications(id),
			patient_id TEXT NOT NULL REFERENCES patients(id),
			dispensed_date TIMESTAMP WITH TIME ZONE NOT NULL,
			quantity INT NOT NULL CHECK (quantity > 0),
			next_due_date TIMESTAMP WITH TIME ZONE NOT NULL,
			window_key TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CONSTRAINT ux_dispensations_window UNIQUE (patient_id, medication_id, window_key)
		);

		CREATE INDEX ix_dispensations_history
			ON dispensations (patient_id, medication_id, dispensed_date DESC);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateDispensationsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS dispensations;`

	_, err := tx.ExecContext(ctx, query)
	return err
}
