package port

import (
	"context"

	reminders "careLinkWs/internal/modules/reminders/application/port"
)

// Reminders runs the reminder producers of one identity until ctx is cancelled. Run is
// called again after every reconnect; what was already reminded must not be repeated.
type Reminders interface {
	Run(ctx context.Context)
}

// ReminderFactory builds the reminder producers of an identity once per session.
type ReminderFactory func(identity string, sink reminders.NotificationSink) Reminders
