package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/reminders/application/port"
	"careLinkWs/internal/modules/reminders/domain"
)

type SchedulerConfig struct {
	AppointmentInterval time.Duration
	MedicationInterval  time.Duration
	CatchUp             time.Duration
	FetchTimeout        time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.AppointmentInterval <= 0 {
		c.AppointmentInterval = time.Hour
	}
	if c.MedicationInterval <= 0 {
		c.MedicationInterval = time.Minute
	}
	if c.CatchUp < 0 {
		c.CatchUp = 0
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

// Scheduler runs the reminder scanners of one identity until its context is cancelled.
// The scanner state lives on the Scheduler, so Run may be called again after a cancel
// without repeating reminders already emitted. Scans are serialized.
type Scheduler struct {
	mu           sync.Mutex
	identity     string
	source       port.ScheduleSource
	sink         port.NotificationSink
	cfg          SchedulerConfig
	appointments *domain.AppointmentScanner
	medications  *domain.MedicationScanner
	now          func() time.Time
}

func NewScheduler(identity string, source port.ScheduleSource, sink port.NotificationSink, cfg SchedulerConfig, now func() time.Time) *Scheduler {
	cfg = cfg.withDefaults()
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		identity:    identity,
		source:      source,
		sink:        sink,
		cfg:         cfg,
		medications: domain.NewMedicationScanner(cfg.CatchUp),
		now:         now,
	}
	s.appointments = domain.NewAppointmentScanner(func(a domain.Appointment, err error) {
		slog.Warn("reminder appointment skipped", slog.String("userId", identity), slog.Int64("appointmentId", a.ID), slog.Any("error", err))
	})
	return s
}

// Run scans immediately, then on every interval tick.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Debug("reminder scheduler started", slog.String("userId", s.identity))
	defer slog.Debug("reminder scheduler stopped", slog.String("userId", s.identity))

	s.ScanAppointments(ctx)
	s.ScanMedications(ctx)

	apptTicker := time.NewTicker(s.cfg.AppointmentInterval)
	defer apptTicker.Stop()
	medTicker := time.NewTicker(s.cfg.MedicationInterval)
	defer medTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-apptTicker.C:
			s.ScanAppointments(ctx)
		case <-medTicker.C:
			s.ScanMedications(ctx)
		}
	}
}

// ScanAppointments runs one appointment cycle and returns the number of reminders emitted.
func (s *Scheduler) ScanAppointments(ctx context.Context) int {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	appointments, err := s.source.Appointments(fetchCtx, s.identity)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("reminder appointments fetch failed", slog.String("userId", s.identity), slog.Any("error", err))
		}
		return 0
	}
	return s.emit(s.appointments.Scan(appointments, s.now()))
}

// ScanMedications runs one medication cycle and returns the number of reminders emitted.
func (s *Scheduler) ScanMedications(ctx context.Context) int {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	medications, err := s.source.Medications(fetchCtx, s.identity)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("reminder medications fetch failed", slog.String("userId", s.identity), slog.Any("error", err))
		}
		return 0
	}
	return s.emit(s.medications.Scan(medications, s.now()))
}

func (s *Scheduler) emit(inputs []notifications.Input) int {
	for _, in := range inputs {
		n := s.sink.Add(in)
		slog.Info("reminder emitted", slog.String("userId", s.identity), slog.Int64("notificationId", n.ID), slog.String("type", string(n.Type)))
	}
	return len(inputs)
}
