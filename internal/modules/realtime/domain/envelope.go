package domain

import "time"

// Envelope is the server to client frame sent over websockets.
type Envelope struct {
	Topic     string            `json:"topic"`
	Event     string            `json:"event"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Data      any               `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEnvelope stamps an envelope with the current UTC time.
func NewEnvelope(topic, event string, data any) *Envelope {
	return &Envelope{Topic: topic, Event: event, Data: data, Timestamp: time.Now().UTC()}
}

// For targets the envelope at every connection of identity.
func (e *Envelope) For(identity string) *Envelope {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string, 1)
	}
	e.Metadata["userId"] = identity
	return e
}

// Target returns the identity the envelope is addressed to, or "" for a broadcast.
func (e *Envelope) Target() string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	return e.Metadata["userId"]
}

// ErrorEnvelope reports a rejected command back to the client that issued it.
func ErrorEnvelope(action, reason string) *Envelope {
	env := NewEnvelope(TopicSystem, EventError, map[string]string{"error": reason})
	env.Metadata = map[string]string{"action": action, "reason": reason}
	return env
}
