package audit

import (
	"context"
	"log/slog"
	"sync"

	"careLinkWs/internal/modules/realtime/application/port"
)

const defaultLogRecorderSize = 500

// LogRecorder writes audit entries to the structured log and keeps the latest ones in
// memory. Used when no audit database is configured.
type LogRecorder struct {
	mu      sync.Mutex
	entries []port.AuditEntry
	size    int
}

func NewLogRecorder(size int) *LogRecorder {
	if size <= 0 {
		size = defaultLogRecorderSize
	}
	return &LogRecorder{size: size}
}

func (r *LogRecorder) Record(_ context.Context, entry port.AuditEntry) error {
	slog.Info("audit",
		slog.String("userId", entry.UserID),
		slog.String("action", entry.Action),
		slog.String("resourceId", entry.ResourceID),
		slog.String("details", entry.Details),
	)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if over := len(r.entries) - r.size; over > 0 {
		r.entries = append(r.entries[:0:0], r.entries[over:]...)
	}
	return nil
}

func (r *LogRecorder) Recent(_ context.Context, userID string, limit int) ([]port.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]port.AuditEntry, 0)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *LogRecorder) Close() error { return nil }
