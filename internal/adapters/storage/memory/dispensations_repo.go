package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinic-care/internal/domain/dispensations"
)

type windowKey struct {
	patientID    string
	medicationID string
	window       string
}

// DispensationRepo guarda pacientes/medicaciones (solo lectura para el motor)
// y el ledger append-only de dispensaciones.
type DispensationRepo struct {
	mu          sync.RWMutex
	patients    map[string]struct{}
	medications map[string]dispensations.Medication
	rows        []dispensations.Dispensation
	taken       map[windowKey]struct{}
}

func NewDispensationRepo() *DispensationRepo {
	return &DispensationRepo{
		patients:    make(map[string]struct{}),
		medications: make(map[string]dispensations.Medication),
		taken:       make(map[windowKey]struct{}),
	}
}

func (r *DispensationRepo) PutPatient(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[id] = struct{}{}
}

func (r *DispensationRepo) PutMedication(m dispensations.Medication) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.medications[m.ID] = m
}

func (r *DispensationRepo) PatientExists(ctx context.Context, patientID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.patients[patientID]
	return ok, nil
}

func (r *DispensationRepo) GetMedication(ctx context.Context, id string) (dispensations.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.medications[id]
	if !ok {
		return dispensations.Medication{}, dispensations.ErrMedicationNotFound
	}
	return m, nil
}

func (r *DispensationRepo) LatestInWindow(ctx context.Context, patientID, medicationID string, from, to time.Time) (dispensations.Dispensation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest dispensations.Dispensation
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
			latest = d
			found = true
		}
	}
	return latest, found, nil
}

func (r *DispensationRepo) Append(ctx context.Context, d dispensations.Dispensation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := windowKey{patientID: d.PatientID, medicationID: d.MedicationID, window: d.WindowKey}
	if _, ok := r.taken[k]; ok {
		return dispensations.ErrWindowTaken
	}
	r.taken[k] = struct{}{}
	r.rows = append(r.rows, d)
	return nil
}

func (r *DispensationRepo) ListByPatient(ctx context.Context, patientID, medicationID string, limit int) ([]dispensations.Dispensation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]dispensations.Dispensation, 0)
	for _, d := range r.rows {
		if d.PatientID == patientID && d.MedicationID == medicationID {
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DispensedDate.After(out[j].DispensedDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
