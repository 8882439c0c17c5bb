package postgres

import (
	"context"

	"clinic-care/internal/domain/audit"

	"github.com/jmoiron/sqlx"
)

// AuditSink escribe en audit_logs; el payload tipado va como jsonb.
type AuditSink struct {
	db *sqlx.DB
}

func NewAuditSink(db *sqlx.DB) *AuditSink {
	return &AuditSink{db: db}
}

func (s *AuditSink) Append(ctx context.Context, e audit.Entry) error {
	payload, err := e.PayloadJSON()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, type, actor_id, target_type, target_id, description, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		e.ID,
		string(e.Kind()),
		e.ActorID,
		string(e.TargetType),
		e.TargetID,
		e.Description,
		string(payload),
		e.OccurredAt,
	)
	return err
}
