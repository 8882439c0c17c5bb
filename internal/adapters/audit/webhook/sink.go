// Package webhook envía las entradas de auditoría a un colector HTTP externo.
package webhook

import (
	"context"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/platform/httpclient"
)

type Sink struct {
	client *httpclient.Client
}

func New(client *httpclient.Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) Append(ctx context.Context, e audit.Entry) error {
	return s.client.PostJSON(ctx, "", e, map[string]string{
		"X-Audit-Type":    string(e.Kind()),
		"Idempotency-Key":  e.ID,
	})
}
