package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"careLinkWs/internal/modules/reminders/application/port"
	"careLinkWs/internal/modules/reminders/domain"
)

// ScheduleHTTPClient fetches schedules from the dashboard REST API:
// GET /api/schedules/{identity}/appointments and /medications.
type ScheduleHTTPClient struct {
	rest *RESTClient
}

var _ port.ScheduleSource = (*ScheduleHTTPClient)(nil)

func NewScheduleHTTPClient(baseURL, serviceToken string, timeout time.Duration, client *http.Client) *ScheduleHTTPClient {
	return &ScheduleHTTPClient{rest: NewRESTClient(baseURL, serviceToken, timeout, client)}
}

func (c *ScheduleHTTPClient) Appointments(ctx context.Context, identity string) ([]domain.Appointment, error) {
	var payload []domain.Appointment
	if err := c.fetch(ctx, identity, "appointments", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *ScheduleHTTPClient) Medications(ctx context.Context, identity string) ([]domain.Medication, error) {
	var payload []domain.Medication
	if err := c.fetch(ctx, identity, "medications", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *ScheduleHTTPClient) fetch(ctx context.Context, identity, kind string, out any) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return fmt.Errorf("%w: missing identity", port.ErrScheduleUnavailable)
	}
	endpoint := "/api/schedules/" + url.PathEscape(identity) + "/" + kind
	if err := c.rest.GetJSON(ctx, endpoint, out); err != nil {
		var status *statusError
		if errors.As(err, &status) && status.Status == http.StatusNotFound {
			// no schedule on record
			return nil
		}
		return fmt.Errorf("%w: %v", port.ErrScheduleUnavailable, err)
	}
	return nil
}
