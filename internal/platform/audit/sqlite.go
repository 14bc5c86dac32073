package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"careLinkWs/internal/modules/realtime/application/port"
)

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS audit_log (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     TEXT    NOT NULL,
				action      TEXT    NOT NULL,
				resource_id TEXT    NOT NULL DEFAULT '',
				details     TEXT    NOT NULL DEFAULT '',
				at_unix_ms  INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log (user_id, id);
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
			INSERT INTO schema_version (version) VALUES (1);`,
	},
}

type auditRow struct {
	ID         int64  `db:"id"`
	UserID     string `db:"user_id"`
	Action     string `db:"action"`
	ResourceID string `db:"resource_id"`
	Details    string `db:"details"`
	AtUnixMs   int64  `db:"at_unix_ms"`
}

func (r auditRow) entry() port.AuditEntry {
	return port.AuditEntry{
		UserID:     r.UserID,
		Action:     r.Action,
		ResourceID: r.ResourceID,
		Details:    r.Details,
		At:         time.UnixMilli(r.AtUnixMs).UTC(),
	}
}

// SQLiteRecorder persists the audit trail in a local SQLite database.
type SQLiteRecorder struct {
	db *sqlx.DB
}

// NewSQLiteRecorder opens (or creates) the database at path and applies pending migrations.
// ":memory:" is accepted for tests.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// sqlite serialises writers; one connection also keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) runMigrations() error {
	var tableCount int
	if err := r.db.Get(&tableCount, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'"); err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	current := 0
	if tableCount > 0 {
		if err := r.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := r.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, entry port.AuditEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, resource_id, details, at_unix_ms)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Action, entry.ResourceID, entry.Details, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording audit entry %s: %w", entry.Action, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty userID lists every identity.
func (r *SQLiteRecorder) Recent(ctx context.Context, userID string, limit int) ([]port.AuditEntry, error) {
	if limit <= 0 {
		return []port.AuditEntry{}, nil
	}
	query := "SELECT id, user_id, action, resource_id, details, at_unix_ms FROM audit_log"
	args := make([]any, 0, 2)
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	out := make([]port.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out, nil
}

var (
	_ port.AuditRecorder = (*SQLiteRecorder)(nil)
	_ port.AuditReader   = (*SQLiteRecorder)(nil)
)
