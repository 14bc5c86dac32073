package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
	reminders "careLinkWs/internal/modules/reminders/application/port"
	remindersuc "careLinkWs/internal/modules/reminders/application/usecase"
	remindersdomain "careLinkWs/internal/modules/reminders/domain"
)

type reminderFunc func(ctx context.Context)

func (f reminderFunc) Run(ctx context.Context) { f(ctx) }

func runnerFactory(run func(ctx context.Context)) port.ReminderFactory {
	return func(string, reminders.NotificationSink) port.Reminders { return reminderFunc(run) }
}

type countingScheduleSource struct {
	fetches      atomic.Int32
	appointments []remindersdomain.Appointment
}

func (s *countingScheduleSource) Appointments(context.Context, string) ([]remindersdomain.Appointment, error) {
	s.fetches.Add(1)
	return s.appointments, nil
}

func (s *countingScheduleSource) Medications(context.Context, string) ([]remindersdomain.Medication, error) {
	return nil, nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionRegistryRunsRemindersWhileAttached(t *testing.T) {
	t.Parallel()

	var started, stopped atomic.Int32
	runner := runnerFactory(func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
		stopped.Add(1)
	})
	registry := NewSessionRegistry(context.Background(), &recordingBroadcaster{}, runner, SessionConfig{Retention: time.Hour})
	defer registry.Close()

	registry.Acquire("John Doe", messaging.RolePatient)
	registry.Acquire("John Doe", messaging.RolePatient)
	waitFor(t, func() bool { return started.Load() == 1 }, "expected reminders to start once")

	registry.Release("John Doe")
	time.Sleep(20 * time.Millisecond)
	if stopped.Load() != 0 {
		t.Fatal("reminders must keep running while a consumer is attached")
	}

	registry.Release("John Doe")
	waitFor(t, func() bool { return stopped.Load() == 1 }, "expected reminders to stop after last release")

	if _, ok := registry.Lookup("John Doe"); !ok {
		t.Fatal("released session should be retained")
	}
}

func TestSessionRegistryReconnectDoesNotRepeatReminders(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)
	source := &countingScheduleSource{appointments: []remindersdomain.Appointment{
		{ID: 1, PatientName: "John Doe", DoctorName: "Dr. Smith", Date: "2025-04-21", Time: "04:00"},
	}}
	var built atomic.Int32
	factory := func(identity string, sink reminders.NotificationSink) port.Reminders {
		built.Add(1)
		return remindersuc.NewScheduler(identity, source, sink, remindersuc.SchedulerConfig{}, func() time.Time { return now })
	}
	registry := NewSessionRegistry(context.Background(), nil, factory, SessionConfig{Retention: time.Hour})
	defer registry.Close()

	var session *Session
	for cycle := int32(1); cycle <= 3; cycle++ {
		session = registry.Acquire("John Doe", messaging.RolePatient)
		waitFor(t, func() bool { return source.fetches.Load() >= cycle }, "expected a scan on every acquire")
		registry.Release("John Doe")
	}
	// the scheduler serializes scans; one more acquire waits for the last one
	registry.Acquire("John Doe", messaging.RolePatient)
	waitFor(t, func() bool { return source.fetches.Load() >= 4 }, "expected a scan on the last acquire")

	if built.Load() != 1 {
		t.Fatalf("expected one scheduler per session, got %d", built.Load())
	}
	if got := session.Store().Len(); got != 1 {
		t.Fatalf("expected the appointment to be reminded once across reconnects, got %d", got)
	}
}

func TestSessionRegistryIgnoresStaleExpiryTimer(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry(context.Background(), nil, nil, SessionConfig{Retention: time.Hour})
	defer registry.Close()

	session := registry.Acquire("Dr. Smith", messaging.RoleDoctor)
	registry.Release("Dr. Smith")
	stale := session.expiry
	registry.Acquire("Dr. Smith", messaging.RoleDoctor)
	registry.Release("Dr. Smith")

	tests := []struct {
		name  string
		timer *time.Timer
		kept  bool
	}{
		{name: "timer from an earlier release", timer: stale, kept: true},
		{name: "current retention timer", timer: session.expiry, kept: false},
	}
	for _, tt := range tests {
		registry.expire(session, tt.timer)
		if _, ok := registry.Lookup("Dr. Smith"); ok != tt.kept {
			t.Fatalf("%s: expected kept=%v, got %v", tt.name, tt.kept, ok)
		}
	}
}

func TestSessionRegistryDropsSessionAfterRetention(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry(context.Background(), nil, nil, SessionConfig{Retention: 30 * time.Millisecond})
	defer registry.Close()

	registry.Acquire("Dr. Smith", messaging.RoleDoctor)
	registry.Release("Dr. Smith")
	waitFor(t, func() bool {
		_, ok := registry.Lookup("Dr. Smith")
		return !ok
	}, "expected session to expire")
}

func TestSessionRegistryReacquireKeepsRetainedState(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry(context.Background(), nil, nil, SessionConfig{Retention: 50 * time.Millisecond})
	defer registry.Close()

	// an event for an offline identity is retained until it connects
	registry.Ensure("Jane Smith", "").Store().Add(notifications.Input{Message: "Appointment update: moved"})

	session := registry.Acquire("Jane Smith", messaging.RolePatient)
	time.Sleep(100 * time.Millisecond)
	if _, ok := registry.Lookup("Jane Smith"); !ok {
		t.Fatal("acquired session must not expire")
	}
	if session.Store().UnreadCount() != 1 {
		t.Fatalf("expected retained notification, got %d unread", session.Store().UnreadCount())
	}
	if session.Channel().Role() != messaging.RolePatient {
		t.Fatalf("expected role to be set on acquire, got %q", session.Channel().Role())
	}
}

func TestSessionRegistryPushesStoreChangesToIdentity(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{}
	registry := NewSessionRegistry(context.Background(), broadcaster, nil, SessionConfig{})
	defer registry.Close()

	session := registry.Acquire("John Doe", messaging.RolePatient)
	session.Store().Add(notifications.Input{Message: "Time to take Aspirin (81mg)", Type: notifications.TypeWarning})
	session.Store().MarkAllRead()

	pushed := broadcaster.forTarget("John Doe", domain.EventSnapshot)
	if len(pushed) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(pushed))
	}
	first := pushed[0].Data.(domain.NotificationsSnapshot)
	if first.Unread != 1 || len(first.Items) != 1 {
		t.Fatalf("unexpected first snapshot %+v", first)
	}
	if last := pushed[1].Data.(domain.NotificationsSnapshot); last.Unread != 0 {
		t.Fatalf("expected no unread after markAllRead, got %d", last.Unread)
	}
	if pushed[0].Topic != domain.TopicNotifications {
		t.Fatalf("unexpected topic %s", pushed[0].Topic)
	}
}

func TestSessionRegistryCloseStopsReminders(t *testing.T) {
	var stopped atomic.Int32
	runner := runnerFactory(func(ctx context.Context) {
		<-ctx.Done()
		stopped.Add(1)
	})
	registry := NewSessionRegistry(context.Background(), nil, runner, SessionConfig{})
	registry.Acquire("Admin", messaging.RoleAdmin)
	registry.Close()

	waitFor(t, func() bool { return stopped.Load() == 1 }, "expected close to cancel reminders")
	if registry.Len() != 0 {
		t.Fatalf("expected no sessions after close, got %d", registry.Len())
	}
}
