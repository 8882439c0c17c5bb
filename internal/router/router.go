package router

import (
	"errors"
	"net/http"
	"time"

	_ "clinic-care/docs"
	mem "clinic-care/internal/adapters/storage/memory"
	pg "clinic-care/internal/adapters/storage/postgres"
	"clinic-care/internal/domain/audit"
	"clinic-care/internal/domain/dispensations"
	"clinic-care/internal/domain/sessions"
	"clinic-care/internal/middleware"
	"clinic-care/internal/platform/logger"
	"clinic-care/internal/platform/metrics"
	"clinic-care/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Location es la zona de las ventanas de elegibilidad. Obligatoria.
	Location *time.Location

	Logger logger.Logger
	Audit  *audit.Recorder // nil = sin auditoría

	// BookingMaxAttempts acota los reintentos por versión obsoleta (0 = default).
	BookingMaxAttempts int

	// Repos explícitos (tests / seed). Si faltan: Postgres si hay DB, si no in-memory.
	Sessions      sessions.Repository
	Dispensations dispensations.Repository
	DB            *sqlx.DB
}

func NewRouter(opts Options) (http.Handler, error) {
	if opts.Location == nil {
		return nil, errors.New("router: eligibility location required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	sessionRepo := opts.Sessions
	dispRepo := opts.Dispensations
	switch {
	case opts.DB != nil:
		if sessionRepo == nil {
			sessionRepo = pg.NewSessionsRepo(opts.DB)
		}
		if dispRepo == nil {
			dispRepo = pg.NewDispensationsRepo(opts.DB)
		}
	default:
		if sessionRepo == nil {
			sessionRepo = mem.NewSessionRepo()
		}
		if dispRepo == nil {
			dispRepo = mem.NewDispensationRepo()
		}
	}

	// Services por módulo
	sessionsSvc := sessions.NewService(sessionRepo, sessions.Options{
		Audit:       opts.Audit,
		Logger:      log,
		MaxAttempts: opts.BookingMaxAttempts,
	})
	dispSvc, err := dispensations.NewService(dispRepo, opts.Location, dispensations.Options{
		Audit:  opts.Audit,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))
	r.Use(metrics.HTTP)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Rutas por módulo
	sessions.RegisterRoutes(r, sessionsSvc)
	dispensations.RegisterRoutes(r, dispSvc)

	return r, nil
}
