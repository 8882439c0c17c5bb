package dispensations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/domain/errs"
	"clinic-care/internal/platform/keylock"
	"clinic-care/internal/platform/logger"
	"clinic-care/internal/platform/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var tracer = otel.Tracer("clinic-care/dispensations")

type Options struct {
	Audit  *audit.Recorder
	Logger logger.Logger
}

// Service es el motor de elegibilidad. Las ventanas se calculan en loc (configurable,
// nunca implícito).
type Service struct {
	repo  Repository
	audit *audit.Recorder
	log   logger.Logger
	locks *keylock.Locker
	loc   *time.Location

	now func() time.Time
}

func NewService(repo Repository, loc *time.Location, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errors.New("dispensations: repository required")
	}
	if loc == nil {
		return nil, errors.New("dispensations: eligibility location required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:  repo,
		audit: opts.Audit,
		log:   log.With(map[string]any{"component": "dispensations"}),
		locks: keylock.New(),
		loc:   loc,
		now:   time.Now,
	}, nil
}

func (s *Service) Location() *time.Location { return s.loc }

// CheckEligibility es una lectura consultiva: no toma el lock.
func (s *Service) CheckEligibility(ctx context.Context, patientID, medicationID string, proposed time.Time) (_ Eligibility, err error) {
	ctx, span := tracer.Start(ctx, "dispensations.CheckEligibility", trace.WithAttributes(
		attribute.String("patient.id", patientID),
		attribute.String("medication.id", medicationID),
	))
	defer func() { finish(span, "check", err) }()

	if proposed.IsZero() {
		return Eligibility{}, ErrInvalidDate
	}

	med, err := s.lookup(ctx, patientID, medicationID)
	if err != nil {
		return Eligibility{}, err
	}
	return s.evaluate(ctx, med, proposed)
}

// Dispense re-evalúa dentro de la sección crítica (patient|medication) y solo
// entonces escribe. El resultado de un CheckEligibility previo no se reutiliza.
func (s *Service) Dispense(ctx context.Context, patientID, medicationID string, proposed time.Time, quantity int) (_ Dispensation, err error) {
	ctx, span := tracer.Start(ctx, "dispensations.Dispense", trace.WithAttributes(
		attribute.String("patient.id", patientID),
		attribute.String("medication.id", medicationID),
		attribute.Int("quantity", quantity),
	))
	defer func() { finish(span, "dispense", err) }()

	if quantity <= 0 {
		return Dispensation{}, ErrInvalidQuantity
	}
	if proposed.IsZero() {
		return Dispensation{}, ErrInvalidDate
	}

	med, err := s.lookup(ctx, patientID, medicationID)
	if err != nil {
		return Dispensation{}, err
	}

	unlock, err := s.locks.Lock(ctx, med.PatientID+"|"+med.ID)
	if err != nil {
		return Dispensation{}, fmt.Errorf("acquire dispensation lock: %w", err)
	}
	defer unlock()

	el, err := s.evaluate(ctx, med, proposed)
	if err != nil {
		return Dispensation{}, err
	}
	if !el.Eligible {
		return Dispensation{}, &IneligibleError{Eligibility: el}
	}

	w := el.Window
	d := Dispensation{
		ID:            uuid.NewString(),
		MedicationID:  med.ID,
		PatientID:     med.PatientID,
		DispensedDate: proposed.In(s.loc),
		Quantity:      quantity,
		NextDueDate:   w.End,
		WindowKey:     w.Key(),
		CreatedAt:     s.now(),
	}

	if err := s.repo.Append(ctx, d); err != nil {
		if errors.Is(err, ErrWindowTaken) {
			// otra instancia ganó la misma ventana
			s.log.Info("dispensation window taken by concurrent writer", map[string]any{
				"patient_id":    med.PatientID,
				"medication_id": med.ID,
				"window":        d.WindowKey,
			})
			next := w.End
			return Dispensation{}, &IneligibleError{Eligibility: Eligibility{
				Eligible:    false,
				Reason:      w.Reason(),
				NextDueDate: &next,
				Window:      w,
			}}
		}
		return Dispensation{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		TargetType:  audit.TargetDispensation,
		TargetID:    d.ID,
		Description: fmt.Sprintf("%s (%s) dispensed to patient %s", med.Name, med.Frequency, med.PatientID),
		Payload: audit.MedicationDispensed{
			PatientID:     d.PatientID,
			MedicationID:  d.MedicationID,
			Frequency:     string(med.Frequency),
			Quantity:      d.Quantity,
			DispensedDate: d.DispensedDate,
			NextDueDate:   d.NextDueDate,
		},
	})

	return d, nil
}

// ListDispensations devuelve el historial del paciente para la medicación, más reciente primero.
func (s *Service) ListDispensations(ctx context.Context, patientID, medicationID string, limit int) ([]Dispensation, error) {
	med, err := s.lookup(ctx, patientID, medicationID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListByPatient(ctx, med.PatientID, med.ID, limit)
}

// lookup valida paciente y medicación. Una medicación prescrita a otro paciente
// se trata como inexistente.
func (s *Service) lookup(ctx context.Context, patientID, medicationID string) (Medication, error) {
	patientID = strings.TrimSpace(patientID)
	medicationID = strings.TrimSpace(medicationID)
	if patientID == "" || medicationID == "" {
		return Medication{}, errs.New(errs.ErrInvalidInput, "patient id and medication id are required")
	}

	ok, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return Medication{}, err
	}
	if !ok {
		return Medication{}, ErrPatientNotFound
	}

	med, err := s.repo.GetMedication(ctx, medicationID)
	if err != nil {
		return Medication{}, err
	}
	if med.PatientID != patientID {
		return Medication{}, ErrMedicationNotFound
	}
	return med, nil
}

func (s *Service) evaluate(ctx context.Context, med Medication, proposed time.Time) (Eligibility, error) {
	w, err := WindowFor(med.Frequency, proposed, s.loc)
	if err != nil {
		return Eligibility{}, err
	}

	last, found, err := s.repo.LatestInWindow(ctx, med.PatientID, med.ID, w.Start, w.End)
	if err != nil {
		return Eligibility{}, err
	}
	if !found {
		return Eligibility{Eligible: true, Window: w}, nil
	}

	next := w.End
	return Eligibility{
		Eligible:    false,
		Reason:      w.Reason(),
		NextDueDate: &next,
		Window:      w,
		Last:        &last,
	}, nil
}

func finish(span trace.Span, op string, err error) {
	metrics.DispenseOutcomes.WithLabelValues(op, outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcome(err error) string {
	var inel *IneligibleError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &inel):
		return "ineligible"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrConflict):
		return "conflict"
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
