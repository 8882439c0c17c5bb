package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionsTable, downCreateSessionsTable)
}

func upCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			program_id TEXT NOT NULL DEFAULT '',
			capacity INT NOT NULL CHECK (capacity > 0),
			booked_count INT NOT NULL DEFAULT 0 CHECK (booked_count >= 0),
			scheduled_date DATE NOT NULL,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS sessions;`

	_, err := tx.ExecContext(ctx, query)
	return err
}
