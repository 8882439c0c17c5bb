package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clinic-care/internal/adapters/audit/logsink"
	"clinic-care/internal/adapters/audit/natsbus"
	"clinic-care/internal/adapters/audit/rabbitmq"
	"clinic-care/internal/adapters/audit/webhook"
	"clinic-care/internal/adapters/auth/iam"
	mem "clinic-care/internal/adapters/storage/memory"
	pg "clinic-care/internal/adapters/storage/postgres"
	"clinic-care/internal/domain/audit"
	"clinic-care/internal/platform/config"
	"clinic-care/internal/platform/httpclient"
	"clinic-care/internal/platform/logger"
	"clinic-care/internal/platform/telemetry"
	"clinic-care/internal/router"
	_ "clinic-care/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// @title clinic-care API
// @version 1.0
// @description Reservas de sesiones con cupo y elegibilidad de dispensación de medicamentos.
// @BasePath /
func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-care",
		Short: "Session booking and medication dispensation service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.AppName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	var (
		db       *sqlx.DB
		sessions *mem.SessionRepo
		disp     *mem.DispensationRepo
	)
	if strings.TrimSpace(cfg.DBDSN) != "" {
		db, err = pg.Open(cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("using postgres storage", nil)
	} else {
		sessions, disp, err = mem.LoadSeedFile(cfg.SeedFile, loc)
		if err != nil {
			return err
		}
		log.Warn("DB_DSN not set, using in-memory storage", map[string]any{"seed_file": cfg.SeedFile})
	}

	sink, closeSink, err := auditSink(cfg, db, log)
	if err != nil {
		return err
	}
	defer closeSink()

	recorder := audit.NewRecorder(sink, log, cfg.AuditTimeout)
	defer recorder.Close()

	opts := router.Options{
		Location:           loc,
		Logger:             log,
		Audit:              recorder,
		BookingMaxAttempts: cfg.BookingMaxAttempts,
		DB:                 db,
	}
	if db == nil {
		opts.Sessions = sessions
		opts.Dispensations = disp
	}
	if strings.TrimSpace(cfg.AuthURL) != "" {
		client, err := httpclient.New(cfg.AuthURL, httpclient.DefaultTimeout)
		if err != nil {
			return err
		}
		opts.AuthVerifier = iam.NewVerifier(client, cfg.AuthAPIKey, "")
	} else {
		log.Warn("AUTH_URL not set, accepting X-Debug-User-ID (dev mode)", nil)
	}

	h, err := router.NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", map[string]any{
			"addr":       srv.Addr,
			"audit_sink": cfg.AuditSink,
			"timezone":   loc.String(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server", nil)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// auditSink arma el destino de auditoría según AUDIT_SINK. El closer se llama al
// final, después de esperar las escrituras pendientes del Recorder.
func auditSink(cfg config.Config, db *sqlx.DB, log logger.Logger) (audit.Sink, func(), error) {
	noop := func() {}
	closer := func(c io.Closer) func() {
		return func() {
			if err := c.Close(); err != nil {
				log.Warn("close audit sink", map[string]any{"error": err.Error()})
			}
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.AuditSink)) {
	case config.AuditSinkPostgres:
		if db == nil {
			return nil, noop, errors.New("AUDIT_SINK=postgres requires DB_DSN")
		}
		return pg.NewAuditSink(db), noop, nil
	case config.AuditSinkNATS:
		p, err := natsbus.Connect(cfg.NATSURL, cfg.AppName)
		if err != nil {
			return nil, noop, err
		}
		return p, closer(p), nil
	case config.AuditSinkAMQP:
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, noop, err
		}
		return p, closer(p), nil
	case config.AuditSinkWebhook:
		client, err := httpclient.New(cfg.AuditWebhookURL, cfg.AuditTimeout)
		if err != nil {
			return nil, noop, err
		}
		return webhook.New(client), noop, nil
	default:
		return logsink.New(log), noop, nil
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	withDB := func(run func(db *sqlx.DB, dir string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.DBDSN) == "" {
				return errors.New("DB_DSN is required for migrations")
			}
			db, err := pg.Open(cfg.DBDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return run(db, dir)
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withDB(func(db *sqlx.DB, dir string) error {
			if err := goose.Up(db.DB, dir); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		}),
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withDB(func(db *sqlx.DB, dir string) error {
			return goose.Status(db.DB, dir)
		}),
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: withDB(func(db *sqlx.DB, dir string) error {
			return goose.Down(db.DB, dir)
		}),
	}
	downCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(downCmd)

	return cmd
}
