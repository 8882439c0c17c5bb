// Package natsbus publica las entradas de auditoría en NATS, subject audit.<type>.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"

	"clinic-care/internal/domain/audit"

	"github.com/nats-io/nats.go"
)

const SubjectPrefix = "audit"

type Publisher struct {
	conn *nats.Conn
}

func Connect(url, clientName string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name(clientName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: nc}, nil
}

// Append publica y espera el flush al servidor dentro del deadline del ctx.
func (p *Publisher) Append(ctx context.Context, e audit.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(Subject(e), b); err != nil {
		return fmt.Errorf("publish nats: %w", err)
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

func Subject(e audit.Entry) string {
	kind := string(e.Kind())
	if kind == "" {
		kind = "unknown"
	}
	return SubjectPrefix + "." + kind
}
