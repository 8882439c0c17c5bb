// Package logsink escribe las entradas de auditoría en el logger estructurado.
// Es el sink por defecto cuando no hay infraestructura externa configurada.
package logsink

import (
	"context"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/platform/logger"
)

type Sink struct {
	log logger.Logger
}

func New(log logger.Logger) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	return &Sink{log: log.With(map[string]any{"component": "audit_log"})}
}

func (s *Sink) Append(ctx context.Context, e audit.Entry) error {
	payload, err := e.PayloadJSON()
	if err != nil {
		return err
	}

	s.log.Info("audit", map[string]any{
		"entry_id":    e.ID,
		"type":        string(e.Kind()),
		"actor_id":    e.ActorID,
		"target_type": string(e.TargetType),
		"target_id":   e.TargetID,
		"description": e.Description,
		"payload":     string(payload),
		"occurred_at": e.OccurredAt,
	})
	return nil
}
