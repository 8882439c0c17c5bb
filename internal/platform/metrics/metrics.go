// Package metrics registra los collectors Prometheus del servicio.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// BookingOutcomes cuenta resultados por operación (create/status/cancel/remove)
	// y resultado (ok, not_found, conflict, bad_request, error).
	BookingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// CommitRetries cuenta commits rechazados por versión obsoleta de la sesión.
	CommitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_commit_retries_total",
			Help: "Session commits retried after a stale version",
		},
	)

	DispenseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispensation_operations_total",
			Help: "Dispense and eligibility checks by outcome",
		},
		[]string{"operation", "outcome"},
	)

	AuditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_append_failures_total",
			Help: "Audit entries that could not be written",
		},
		[]string{"type"},
	)
)

// HTTP mide cada request usando el route pattern de chi (evita cardinalidad por ids).
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		httpRequestTotal.WithLabelValues(r.Method, route, code).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
	})
}
