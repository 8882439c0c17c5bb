package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateAuditLogsTable, downCreateAuditLogsTable)
}

func upCreateAuditLogsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE INDEX ix_audit_logs_target ON audit_logs (target_type, target_id, occurred_at);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateAuditLogsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS audit_logs;`

	_, err := tx.ExecContext(ctx, query)
	return err
}
