package dispensations

import (
	"fmt"
	"strings"
	"time"
)

// Window es el período [Start, End) dentro del cual se permite una sola dispensación.
type Window struct {
	Frequency Frequency
	Start     time.Time
	End       time.Time
}

// WindowFor calcula la ventana que contiene t en loc:
// daily = día calendario, weekly = semana ISO (lunes a domingo), monthly = mes calendario.
func WindowFor(f Frequency, t time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		return Window{}, fmt.Errorf("window for %s: nil location", f)
	}

	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)

	switch f {
	case FrequencyDaily:
		return Window{Frequency: f, Start: day, End: day.AddDate(0, 0, 1)}, nil
	case FrequencyWeekly:
		// Weekday: domingo=0; offset desde el lunes
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return Window{Frequency: f, Start: start, End: start.AddDate(0, 0, 7)}, nil
	case FrequencyMonthly:
		start := time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
		return Window{Frequency: f, Start: start, End: start.AddDate(0, 1, 0)}, nil
	default:
		return Window{}, ErrUnknownFrequency
	}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Key identifica la ventana de forma canónica: daily:2024-01-10, weekly:2024-W02, monthly:2024-01.
func (w Window) Key() string {
	switch w.Frequency {
	case FrequencyWeekly:
		year, week := w.Start.ISOWeek()
		return fmt.Sprintf("weekly:%04d-W%02d", year, week)
	case FrequencyMonthly:
		return "monthly:" + w.Start.Format("2006-01")
	default:
		return string(w.Frequency) + ":" + w.Start.Format(time.DateOnly)
	}
}

// Reason es el texto que ve el cliente cuando la ventana ya está usada.
func (w Window) Reason() string {
	switch w.Frequency {
	case FrequencyWeekly:
		return "already dispensed this week"
	case FrequencyMonthly:
		return "already dispensed this month"
	default:
		return "already dispensed today"
	}
}

// ParseDate acepta YYYY-MM-DD (medianoche en loc) o RFC3339.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}
