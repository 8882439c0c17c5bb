//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-care/internal/domain/dispensations"
	"clinic-care/internal/domain/errs"
	"clinic-care/internal/domain/sessions"
	_ "clinic-care/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type StorageIntegrationSuite struct {
	suite.Suite
	ctx context.Context
	pgc *tcpostgres.PostgresContainer
	db  *sqlx.DB
}

func TestStorageIntegration(t *testing.T) {
	suite.Run(t, new(StorageIntegrationSuite))
}

func (s *StorageIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	pgc, err := tcpostgres.Run(s.ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("clinic"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.pgc = pgc

	dsn, err := pgc.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := Open(dsn)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(goose.SetDialect("postgres"))
	s.Require().NoError(goose.Up(db.DB, "../../../../migrations"))
}

func (s *StorageIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pgc != nil {
		_ = s.pgc.Terminate(s.ctx)
	}
}

func (s *StorageIntegrationSuite) seedSession(id string, capacity int) {
	_, err := s.db.ExecContext(s.ctx, `
		INSERT INTO sessions (id, program_id, capacity, scheduled_date, start_time, end_time)
		VALUES ($1, 'prog-1', $2, '2024-01-10', '09:00', '10:00')
	`, id, capacity)
	s.Require().NoError(err)
}

func (s *StorageIntegrationSuite) TestConcurrentLastSeat_AcrossServices() {
	s.seedSession("s-race", 1)
	repo := NewSessionsRepo(s.db)

	// dos Services = dos procesos: no comparten keylock, solo el CAS de la DB
	svcA := sessions.NewService(repo, sessions.Options{})
	svcB := sessions.NewService(repo, sessions.Options{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		results []error
	)
	for i, svc := range []*sessions.Service{svcA, svcB, svcA, svcB} {
		wg.Add(1)
		go func(i int, svc *sessions.Service) {
			defer wg.Done()
			_, err := svc.CreateBooking(s.ctx, "s-race", "subject-"+string(rune('a'+i)))
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}(i, svc)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		s.Require().True(errors.Is(err, sessions.ErrSessionFull) || errors.Is(err, sessions.ErrContention), "unexpected %v", err)
	}
	s.Equal(1, ok)

	sess, err := repo.GetSession(s.ctx, "s-race")
	s.Require().NoError(err)
	s.Equal(1, sess.BookedCount)
}

func (s *StorageIntegrationSuite) TestBookingLifecycle() {
	s.seedSession("s-life", 2)
	repo := NewSessionsRepo(s.db)
	svc := sessions.NewService(repo, sessions.Options{})

	b, err := svc.CreateBooking(s.ctx, "s-life", "p-1")
	s.Require().NoError(err)

	_, err = svc.CreateBooking(s.ctx, "s-life", "p-1")
	s.Require().ErrorIs(err, sessions.ErrDuplicateBooking)

	_, err = svc.CancelBooking(s.ctx, b.ID)
	s.Require().NoError(err)
	_, err = svc.CancelBooking(s.ctx, b.ID)
	s.Require().ErrorIs(err, sessions.ErrAlreadyCancelled)

	s.Require().NoError(svc.RemoveBooking(s.ctx, b.ID))
	s.Require().ErrorIs(svc.RemoveBooking(s.ctx, b.ID), errs.ErrNotFound)

	sess, err := repo.GetSession(s.ctx, "s-life")
	s.Require().NoError(err)
	s.Equal(0, sess.BookedCount)
}

func (s *StorageIntegrationSuite) TestDispense_UniqueWindow() {
	_, err := s.db.ExecContext(s.ctx, `INSERT INTO patients (id) VALUES ('p-int')`)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(s.ctx, `
		INSERT INTO medications (id, patient_id, name, frequency) VALUES ('m-int', 'p-int', 'Metformin', 'daily')
	`)
	s.Require().NoError(err)

	repo := NewDispensationsRepo(s.db)
	svc, err := dispensations.NewService(repo, time.UTC, dispensations.Options{})
	s.Require().NoError(err)

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d, err := svc.Dispense(s.ctx, "p-int", "m-int", day, 1)
	s.Require().NoError(err)

	_, err = svc.Dispense(s.ctx, "p-int", "m-int", day.Add(6*time.Hour), 1)
	var inel *dispensations.IneligibleError
	s.Require().ErrorAs(err, &inel)

	el, err := svc.CheckEligibility(s.ctx, "p-int", "m-int", day)
	s.Require().NoError(err)
	s.False(el.Eligible)
	require.True(s.T(), el.NextDueDate.Equal(d.NextDueDate))

	// escritura directa a la misma ventana: la restricción única la rechaza
	dup := d
	dup.ID = "d-dup"
	s.Require().ErrorIs(repo.Append(s.ctx, dup), dispensations.ErrWindowTaken)
}
