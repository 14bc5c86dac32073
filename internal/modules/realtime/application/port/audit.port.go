package port

import (
	"context"
	"time"
)

// AuditEntry records one user action on notifications or messages.
type AuditEntry struct {
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resourceId"`
	Details    string    `json:"details,omitempty"`
	At         time.Time `json:"at"`
}

type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditReader lists recent entries, newest first. An empty userID lists everyone.
type AuditReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]AuditEntry, error)
}
