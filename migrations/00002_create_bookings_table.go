package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBookingsTable, downCreateBookingsTable)
}

func upCreateBookingsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE bookings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			subject_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('booked', 'attended', 'cancelled', 'missed')),
			booked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE UNIQUE INDEX ux_bookings_active_subject
			ON bookings (session_id, subject_id)
			WHERE status IN ('booked', 'attended');

		CREATE INDEX ix_bookings_session ON bookings (session_id, booked_at);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateBookingsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS bookings;`

	_, err := tx.ExecContext(ctx, query)
	return err
}
