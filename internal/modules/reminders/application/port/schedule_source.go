package port

import (
	"context"
	"errors"

	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/reminders/domain"
)

var ErrScheduleUnavailable = errors.New("schedule unavailable")

// ScheduleSource supplies the appointments and medications of one identity.
type ScheduleSource interface {
	Appointments(ctx context.Context, identity string) ([]domain.Appointment, error)
	Medications(ctx context.Context, identity string) ([]domain.Medication, error)
}

// NotificationSink receives reminders; a notification store satisfies it.
type NotificationSink interface {
	Add(in notifications.Input) notifications.Notification
}
