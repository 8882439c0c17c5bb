package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"clinic-care/internal/platform/logger"
	"clinic-care/internal/platform/metrics"

	"github.com/google/uuid"
)

// Sink es el colaborador externo: registro de actividad append-only, best-effort.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

const (
	DefaultTimeout   = 3 * time.Second
	DefaultQueueSize = 1024
)

var (
	ErrQueueFull      = errors.New("audit queue full")
	ErrRecorderClosed = errors.New("audit recorder closed")
)

type queued struct {
	ctx   context.Context
	entry Entry
}

// Recorder despacha entradas al Sink sin bloquear ni fallar la operación que las origina.
// Un único worker drena la cola, así el sink recibe las entradas en el orden en que se
// registraron. Los errores del sink y las entradas descartadas se loguean y se cuentan;
// nunca vuelven al caller.
type Recorder struct {
	sink    Sink
	log     logger.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan queued
	done   chan struct{}

	pending sync.WaitGroup
}

func NewRecorder(sink Sink, log logger.Logger, timeout time.Duration) *Recorder {
	return newRecorder(sink, log, timeout, DefaultQueueSize)
}

func newRecorder(sink Sink, log logger.Logger, timeout time.Duration, size int) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	r := &Recorder{
		sink:    sink,
		log:     log.With(map[string]any{"component": "audit"}),
		timeout: timeout,
		now:     time.Now,
		queue:   make(chan queued, size),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record completa id/actor/fecha y encola la entrada. Nunca bloquea: con la cola
// llena la entrada se descarta y se cuenta como fallo.
// Un Recorder nil es válido (no-op).
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.sink == nil {
		return
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ActorID == "" {
		e.ActorID = ActorFrom(ctx)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now()
	}

	// El request puede terminar antes que el sink: desacoplamos la cancelación
	// pero conservamos los values (trace, request id).
	item := queued{ctx: context.WithoutCancel(ctx), entry: e}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.fail(e, ErrRecorderClosed)
		return
	}
	r.pending.Add(1)
	select {
	case r.queue <- item:
	default:
		r.pending.Done()
		r.fail(e, ErrQueueFull)
	}
}

// Wait bloquea hasta que el sink procese todo lo encolado hasta ahora.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.pending.Wait()
}

// Close deja de aceptar entradas, drena la cola y detiene el worker. Idempotente.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for item := range r.queue {
		r.deliver(item.ctx, item.entry)
		r.pending.Done()
	}
}

func (r *Recorder) deliver(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.fail(e, fmt.Errorf("audit sink panic: %v", rec))
		}
	}()

	if err := r.sink.Append(ctx, e); err != nil {
		r.fail(e, err)
	}
}

func (r *Recorder) fail(e Entry, err error) {
	metrics.AuditFailures.WithLabelValues(string(e.Kind())).Inc()
	r.log.Warn("audit append failed", map[string]any{
		"entry_id":  e.ID,
		"type":      string(e.Kind()),
		"target_id": e.TargetID,
		"err":       err,
	})
}

type actorKey struct{}

// WithActor guarda el id del actor (usuario autenticado) para las entradas de auditoría.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actorID))
}

func ActorFrom(ctx context.Context) string {
	v, _ := ctx.Value(actorKey{}).(string)
	if v == "" {
		return "system"
	}
	return v
}
