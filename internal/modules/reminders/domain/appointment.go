package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	notifications "careLinkWs/internal/modules/notifications/domain"
)

// ReminderHorizon is how far ahead an appointment triggers a reminder.
const ReminderHorizon = 24 * time.Hour

var ErrInvalidSchedule = errors.New("invalid schedule entry")

var startLayouts = []string{
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

type Appointment struct {
	ID          int64  `json:"id" mapstructure:"id"`
	PatientName string `json:"patientName" mapstructure:"patientName"`
	DoctorName  string `json:"doctorName" mapstructure:"doctorName"`
	Date        string `json:"date" mapstructure:"date"`
	Time        string `json:"time" mapstructure:"time"`
}

// StartsAt interprets Date and Time in loc. Time accepts "HH:MM" or "H:MM AM/PM".
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date := strings.TrimSpace(a.Date)
	clock := strings.ToUpper(strings.TrimSpace(a.Time))
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("%w: appointment %d has no date or time", ErrInvalidSchedule, a.ID)
	}
	value := date + " " + clock
	for _, layout := range startLayouts {
		if at, err := time.ParseInLocation(layout, value, loc); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: appointment %d at %q", ErrInvalidSchedule, a.ID, value)
}

func (a Appointment) reminderText() string {
	return fmt.Sprintf("Reminder: You have an appointment with %s on %s at %s",
		strings.TrimSpace(a.DoctorName), strings.TrimSpace(a.Date), strings.TrimSpace(a.Time))
}

// AppointmentScanner emits one info reminder per appointment starting within the next 24 hours.
// An appointment id and start instant pair is reminded once; rescheduling reminds again.
type AppointmentScanner struct {
	reminded map[string]struct{}
	onSkip   func(Appointment, error)
}

// NewAppointmentScanner builds a scanner. onSkip, if set, receives unparseable appointments.
func NewAppointmentScanner(onSkip func(Appointment, error)) *AppointmentScanner {
	return &AppointmentScanner{reminded: make(map[string]struct{}), onSkip: onSkip}
}

// Scan is not safe for concurrent use; each scheduler owns its scanner.
func (s *AppointmentScanner) Scan(appointments []Appointment, now time.Time) []notifications.Input {
	due := make(map[string]struct{}, len(appointments))
	out := make([]notifications.Input, 0)
	for _, appt := range appointments {
		startsAt, err := appt.StartsAt(now.Location())
		if err != nil {
			if s.onSkip != nil {
				s.onSkip(appt, err)
			}
			continue
		}
		until := startsAt.Sub(now)
		if until <= 0 || until > ReminderHorizon {
			continue
		}
		key := strconv.FormatInt(appt.ID, 10) + "@" + strconv.FormatInt(startsAt.Unix(), 10)
		due[key] = struct{}{}
		if _, done := s.reminded[key]; done {
			continue
		}
		out = append(out, notifications.Input{
			Message: appt.reminderText(),
			Type:    notifications.TypeInfo,
		})
	}
	// only appointments still inside the horizon are remembered
	s.reminded = due
	return out
}
