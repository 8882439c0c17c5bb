package memory

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"clinic-care/internal/domain/dispensations"
	"clinic-care/internal/domain/sessions"

	"gopkg.in/yaml.v3"
)

// Seed es el contenido de SEED_FILE: sesiones, pacientes y medicaciones para correr
// sin Postgres. Sesiones y prescripciones se gestionan fuera de este servicio.
type Seed struct {
	Sessions []struct {
		ID            string `yaml:"id"`
		ProgramID     string `yaml:"program_id"`
		Capacity      int    `yaml:"capacity"`
		ScheduledDate string `yaml:"scheduled_date"` // YYYY-MM-DD
		StartTime     string `yaml:"start_time"`
		EndTime       string `yaml:"end_time"`
		IsActive      bool   `yaml:"is_active"`
	} `yaml:"sessions"`

	Patients []string `yaml:"patients"`

	Medications []struct {
		ID        string `yaml:"id"`
		PatientID string `yaml:"patient_id"`
		ProgramID string `yaml:"program_id"`
		Name      string `yaml:"name"`
		Frequency string `yaml:"frequency"`
	} `yaml:"medications"`
}

// LoadSeedFile lee y aplica un seed YAML. Las fechas se interpretan en loc.
func LoadSeedFile(path string, loc *time.Location) (*SessionRepo, *DispensationRepo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f, loc)
}

func LoadSeed(r io.Reader, loc *time.Location) (*SessionRepo, *DispensationRepo, error) {
	if loc == nil {
		loc = time.UTC
	}

	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("parse seed: %w", err)
	}

	sessionRepo := NewSessionRepo()
	for _, s := range seed.Sessions {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, nil, fmt.Errorf("seed: session without id")
		}
		if s.Capacity <= 0 {
			return nil, nil, fmt.Errorf("seed: session %s: capacity must be > 0", id)
		}
		var day time.Time
		if raw := strings.TrimSpace(s.ScheduledDate); raw != "" {
			t, err := time.ParseInLocation("2006-01-02", raw, loc)
			if err != nil {
				return nil, nil, fmt.Errorf("seed: session %s: invalid scheduled_date %q", id, raw)
			}
			day = t
		}
		sessionRepo.PutSession(sessions.Session{
			ID:            id,
			ProgramID:     s.ProgramID,
			Capacity:      s.Capacity,
			ScheduledDate: day,
			StartTime:     s.StartTime,
			EndTime:       s.EndTime,
			IsActive:      s.IsActive,
		})
	}

	dispRepo := NewDispensationRepo()
	for _, p := range seed.Patients {
		if p = strings.TrimSpace(p); p != "" {
			dispRepo.PutPatient(p)
		}
	}
	for _, m := range seed.Medications {
		freq := dispensations.Frequency(strings.ToLower(strings.TrimSpace(m.Frequency)))
		if !freq.Valid() {
			return nil, nil, fmt.Errorf("seed: medication %s: unknown frequency %q", m.ID, m.Frequency)
		}
		if strings.TrimSpace(m.ID) == "" || strings.TrimSpace(m.PatientID) == "" {
			return nil, nil, fmt.Errorf("seed: medication requires id and patient_id")
		}
		dispRepo.PutMedication(dispensations.Medication{
			ID:        strings.TrimSpace(m.ID),
			PatientID: strings.TrimSpace(m.PatientID),
			ProgramID: m.ProgramID,
			Name:      m.Name,
			Frequency: freq,
		})
	}

	return sessionRepo, dispRepo, nil
}
