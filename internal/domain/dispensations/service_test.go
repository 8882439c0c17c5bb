package dispensations

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/domain/errs"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu          sync.Mutex
	patients    map[string]bool
	medications map[string]Medication
	rows        []Dispensation

	// skipLookup simula otra instancia: LatestInWindow no ve filas.
	skipLookup bool
}

func newTestRepo() *testRepo {
	return &testRepo{patients: map[string]bool{}, medications: map[string]Medication{}}
}

func (r *testRepo) PatientExists(ctx context.Context, patientID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patients[patientID], nil
}

func (r *testRepo) GetMedication(ctx context.Context, id string) (Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.medications[id]
	if !ok {
		return Medication{}, ErrMedicationNotFound
	}
	return m, nil
}

func (r *testRepo) LatestInWindow(ctx context.Context, patientID, medicationID string, from, to time.Time) (Dispensation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipLookup {
		return Dispensation{}, false, nil
	}

	var (
		latest Dispensation
		found  bool
	)
	for _, d := range r.rows {
		if d.PatientID != patientID || d.MedicationID != medicationID {
			continue
		}
		if d.DispensedDate.Before(from) || !d.DispensedDate.Before(to) {
			continue
		}
		if !found || d.DispensedDate.After(latest.DispensedDate) {
			latest, found = d, true
		}
	}
	return latest, found, nil
}

func (r *testRepo) Append(ctx context.Context, d Dispensation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.rows {
		if x.PatientID == d.PatientID && x.MedicationID == d.MedicationID && x.WindowKey == d.WindowKey {
			return ErrWindowTaken
		}
	}
	r.rows = append(r.rows, d)
	return nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID, medicationID string, limit int) ([]Dispensation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Dispensation, 0)
	for _, d := range r.rows {
		if d.PatientID == patientID && d.MedicationID == medicationID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DispensedDate.After(out[j].DispensedDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *memSink) Append(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func seededRepo() *testRepo {
	r := newTestRepo()
	r.patients["p-1"] = true
	r.patients["p-2"] = true
	r.medications["m-daily"] = Medication{ID: "m-daily", PatientID: "p-1", Name: "Metformin", Frequency: FrequencyDaily}
	r.medications["m-weekly"] = Medication{ID: "m-weekly", PatientID: "p-1", Name: "Methotrexate", Frequency: FrequencyWeekly}
	r.medications["m-monthly"] = Medication{ID: "m-monthly", PatientID: "p-1", Name: "B12", Frequency: FrequencyMonthly}
	r.medications["m-other"] = Medication{ID: "m-other", PatientID: "p-2", Name: "Insulin", Frequency: FrequencyDaily}
	return r
}

func newTestService(t *testing.T, repo *testRepo) (*Service, *memSink, *audit.Recorder) {
	t.Helper()
	sink := &memSink{}
	rec := audit.NewRecorder(sink, nil, time.Second)
	svc, err := NewService(repo, time.UTC, Options{Audit: rec})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	return svc, sink, rec
}

// -------------------------
// Tests
// -------------------------

func TestNewService_RequiresLocation(t *testing.T) {
	if _, err := NewService(newTestRepo(), nil, Options{}); err == nil {
		t.Fatalf("expected error for nil location")
	}
}

func TestService_Daily_SameDayIneligible_NextDayEligible(t *testing.T) {
	svc, sink, rec := newTestService(t, seededRepo())
	ctx := context.Background()

	d, err := svc.Dispense(ctx, "p-1", "m-daily", date(2024, 1, 10, time.UTC), 2)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if !d.NextDueDate.Equal(date(2024, 1, 11, time.UTC)) {
		t.Fatalf("expected next due 2024-01-11, got %v", d.NextDueDate)
	}
	if d.WindowKey != "daily:2024-01-10" {
		t.Fatalf("unexpected window key %s", d.WindowKey)
	}

	el, err := svc.CheckEligibility(ctx, "p-1", "m-daily", time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if el.Eligible || el.Reason != "already dispensed today" {
		t.Fatalf("expected ineligible today, got %#v", el)
	}
	if el.NextDueDate == nil || !el.NextDueDate.Equal(d.NextDueDate) {
		t.Fatalf("expected same next due date as dispense, got %v", el.NextDueDate)
	}
	if el.Last == nil || el.Last.ID != d.ID {
		t.Fatalf("expected last dispensation in payload")
	}

	el, err = svc.CheckEligibility(ctx, "p-1", "m-daily", date(2024, 1, 11, time.UTC))
	if err != nil {
		t.Fatalf("check next day: %v", err)
	}
	if !el.Eligible || el.NextDueDate != nil {
		t.Fatalf("expected eligible next day, got %#v", el)
	}

	rec.Wait()
	if len(sink.entries) != 1 || sink.entries[0].Kind() != audit.KindMedicationDispensed {
		t.Fatalf("expected one medication.dispensed entry, got %d", len(sink.entries))
	}
}

func TestService_Weekly_MondayThroughSunday(t *testing.T) {
	svc, _, _ := newTestService(t, seededRepo())
	ctx := context.Background()

	monday := date(2024, 1, 8, time.UTC)
	if _, err := svc.Dispense(ctx, "p-1", "m-weekly", monday, 1); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	el, err := svc.CheckEligibility(ctx, "p-1", "m-weekly", date(2024, 1, 14, time.UTC))
	if err != nil {
		t.Fatalf("check sunday: %v", err)
	}
	if el.Eligible || el.Reason != "already dispensed this week" {
		t.Fatalf("expected ineligible on sunday, got %#v", el)
	}

	el, err = svc.CheckEligibility(ctx, "p-1", "m-weekly", date(2024, 1, 15, time.UTC))
	if err != nil {
		t.Fatalf("check next monday: %v", err)
	}
	if !el.Eligible {
		t.Fatalf("expected eligible next monday")
	}
}

func TestService_Monthly_Reason(t *testing.T) {
	svc, _, _ := newTestService(t, seededRepo())
	ctx := context.Background()

	if _, err := svc.Dispense(ctx, "p-1", "m-monthly", date(2024, 2, 3, time.UTC), 1); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	_, err := svc.Dispense(ctx, "p-1", "m-monthly", date(2024, 2, 27, time.UTC), 1)
	var inel *IneligibleError
	if !errors.As(err, &inel) {
		t.Fatalf("expected IneligibleError, got %v", err)
	}
	if inel.Eligibility.Reason != "already dispensed this month" {
		t.Fatalf("unexpected reason %q", inel.Eligibility.Reason)
	}
	if !inel.Eligibility.NextDueDate.Equal(date(2024, 3, 1, time.UTC)) {
		t.Fatalf("unexpected next due %v", inel.Eligibility.NextDueDate)
	}
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("ineligible must be a conflict")
	}
}

func TestService_Dispense_ConcurrentSameDay(t *testing.T) {
	repo := seededRepo()
	svc, _, rec := newTestService(t, repo)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Dispense(context.Background(), "p-1", "m-daily", date(2024, 1, 10, time.UTC), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, errs.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	rec.Wait()

	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected 1 success and 1 conflict, got %d/%d", ok, conflicts)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected a single row, got %d", len(repo.rows))
	}
}

func TestService_Dispense_StorageCollisionIsIneligible(t *testing.T) {
	repo := seededRepo()
	svc, _, _ := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Dispense(ctx, "p-1", "m-daily", date(2024, 1, 10, time.UTC), 1); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	// la re-lectura no ve la fila (escritura de otra instancia); el índice único sí
	repo.skipLookup = true
	_, err := svc.Dispense(ctx, "p-1", "m-daily", time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC), 1)

	var inel *IneligibleError
	if !errors.As(err, &inel) {
		t.Fatalf("expected IneligibleError, got %v", err)
	}
	if inel.Eligibility.Reason != "already dispensed today" {
		t.Fatalf("unexpected reason %q", inel.Eligibility.Reason)
	}
}

func TestService_Dispense_Validation(t *testing.T) {
	repo := seededRepo()
	svc, _, _ := newTestService(t, repo)
	ctx := context.Background()

	for _, q := range []int{0, -1} {
		if _, err := svc.Dispense(ctx, "p-1", "m-daily", date(2024, 1, 10, time.UTC), q); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", q, err)
		}
	}
	if _, err := svc.Dispense(ctx, "p-1", "m-daily", time.Time{}, 1); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("validation failures must not write")
	}
}

func TestService_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t, seededRepo())
	ctx := context.Background()
	day := date(2024, 1, 10, time.UTC)

	if _, err := svc.CheckEligibility(ctx, "ghost", "m-daily", day); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected patient not found, got %v", err)
	}
	if _, err := svc.CheckEligibility(ctx, "p-1", "ghost", day); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected medication not found, got %v", err)
	}
	// prescrita a otro paciente
	if _, err := svc.Dispense(ctx, "p-1", "m-other", day, 1); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for foreign medication, got %v", err)
	}
}

func TestService_ListDispensations_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t, seededRepo())
	ctx := context.Background()

	for _, d := range []int{10, 11, 12} {
		if _, err := svc.Dispense(ctx, "p-1", "m-daily", date(2024, 1, d, time.UTC), 1); err != nil {
			t.Fatalf("dispense day %d: %v", d, err)
		}
	}

	items, err := svc.ListDispensations(ctx, "p-1", "m-daily", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].WindowKey != "daily:2024-01-12" {
		t.Fatalf("expected newest first with limit, got %#v", items)
	}
}
