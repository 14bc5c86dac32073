package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedEvent = errors.New("malformed event")

var validate = validator.New()

// InboundEvent is the wire shape of events pushed by the event source
// (Kafka topics and the HTTP ingest endpoint).
type InboundEvent struct {
	Event  string          `json:"event" validate:"required,oneof=newMessage appointmentUpdate appointmentReminder newNotification"`
	UserID string          `json:"userId,omitempty"`
	Data   json.RawMessage `json:"data" validate:"required"`
}

type NewMessagePayload struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

type AppointmentUpdatePayload struct {
	Message string `json:"message" validate:"required"`
}

type AppointmentReminderPayload struct {
	DoctorName string `json:"doctorName" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Time       string `json:"time" validate:"required"`
}

// NewNotificationPayload carries a free-form Type; it is matched case-insensitively
// and unknown values become info.
type NewNotificationPayload struct {
	Message   string `json:"message" validate:"required"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// DecodeInbound parses and validates the envelope of an inbound event.
func DecodeInbound(raw []byte) (*InboundEvent, error) {
	var event InboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event.Event = strings.TrimSpace(event.Event)
	event.UserID = strings.TrimSpace(event.UserID)
	if err := ValidateStruct(&event); err != nil {
		return nil, err
	}
	return &event, nil
}

// DecodePayload unmarshals and validates the data of an inbound event into T.
func DecodePayload[T any](event *InboundEvent) (T, error) {
	var payload T
	if event == nil || len(event.Data) == 0 {
		return payload, fmt.Errorf("%w: empty data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s data: %v", ErrMalformedEvent, event.Event, err)
	}
	if err := ValidateStruct(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// ValidateStruct runs struct tag validation, reporting failures as ErrMalformedEvent.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// NewInboundEvent encodes payload as an inbound event.
func NewInboundEvent(name, userID string, payload any) (*InboundEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return &InboundEvent{Event: name, UserID: userID, Data: data}, nil
}
