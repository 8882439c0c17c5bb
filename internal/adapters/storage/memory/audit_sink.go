package memory

import (
	"context"
	"sync"

	"clinic-care/internal/domain/audit"
)

// AuditSink acumula entradas en memoria (tests y modo dev).
type AuditSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (s *AuditSink) Append(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries devuelve una copia.
func (s *AuditSink) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
