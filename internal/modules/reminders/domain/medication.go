package domain

import (
	"fmt"
	"strings"
	"time"

	notifications "careLinkWs/internal/modules/notifications/domain"
)

const clockLayout = "15:04"

// DefaultCatchUp bounds how far back a late scan looks for missed doses.
const DefaultCatchUp = 10 * time.Minute

type Medication struct {
	ID        int64  `json:"id" mapstructure:"id"`
	Name      string `json:"name" mapstructure:"name"`
	Dosage    string `json:"dosage" mapstructure:"dosage"`
	Frequency string `json:"frequency" mapstructure:"frequency"`
	Time      string `json:"time" mapstructure:"time"`
}

// Times returns the scheduled clock times as "HH:MM". Unparseable entries are kept trimmed
// so they simply never match.
func (m Medication) Times() []string {
	parts := strings.Split(m.Time, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if t, err := time.Parse(clockLayout, part); err == nil {
			part = t.Format(clockLayout)
		}
		out = append(out, part)
	}
	return out
}

// MedicationScanner compares scheduled times against the wall clock minute by minute.
type MedicationScanner struct {
	catchUp time.Duration
	last    time.Time
}

// NewMedicationScanner builds a scanner. A zero catchUp only checks the current minute.
func NewMedicationScanner(catchUp time.Duration) *MedicationScanner {
	if catchUp < 0 {
		catchUp = 0
	}
	return &MedicationScanner{catchUp: catchUp}
}

// Scan emits one warning per dose scheduled at the current minute. Minutes skipped since
// the previous scan are re-checked when they fall inside the catch-up window. A second scan
// within the same minute emits nothing.
func (s *MedicationScanner) Scan(medications []Medication, now time.Time) []notifications.Input {
	minute := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
	if !s.last.IsZero() && !minute.After(s.last) {
		return nil
	}

	start := minute
	if !s.last.IsZero() && s.catchUp > 0 {
		start = s.last.Add(time.Minute)
		if floor := minute.Add(-s.catchUp); start.Before(floor) {
			start = floor
		}
	}
	s.last = minute

	out := make([]notifications.Input, 0)
	for at := start; !at.After(minute); at = at.Add(time.Minute) {
		clock := at.Format(clockLayout)
		for _, med := range medications {
			for _, scheduled := range med.Times() {
				if scheduled != clock {
					continue
				}
				out = append(out, notifications.Input{
					Message: doseText(med, clock, at.Equal(minute)),
					Type:    notifications.TypeWarning,
				})
			}
		}
	}
	return out
}

func doseText(m Medication, clock string, onTime bool) string {
	name := strings.TrimSpace(m.Name)
	dosage := strings.TrimSpace(m.Dosage)
	if onTime {
		return fmt.Sprintf("Time to take %s (%s)", name, dosage)
	}
	return fmt.Sprintf("Reminder: %s (%s) was scheduled for %s", name, dosage, clock)
}
