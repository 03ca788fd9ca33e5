// Package audit records server-side business events (generations,
// modifications, session lifecycle) in a local SQLite database.
//
// This is observability, not design persistence: nothing here is ever read
// back into the serving path, and a failing audit store never blocks or
// fails a request.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/draftwire/draftwire/idgen"
)

// Event kinds.
const (
	KindGenerate   = "design.generate"
	KindModify     = "design.modify"
	KindConnect    = "session.connect"
	KindDisconnect = "session.disconnect"
)

// Event is one domain-level occurrence to record.
type Event struct {
	Kind      string
	SessionID string
	DesignID  string
	Detail    string
	Success   bool
}

// EventLogger writes events and manages retention cleanup. A nil
// *EventLogger is valid and drops everything, so callers never need to
// branch on whether auditing is configured.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures an EventLogger.
type Option func(*EventLogger)

// WithIDGenerator sets a custom ID generator for event IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given database.
func NewEventLogger(db *sql.DB, opts ...Option) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init creates the event schema. Idempotent.
func (l *EventLogger) Init() error {
	if l == nil {
		return nil
	}
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS design_event_logs (
			event_id   TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			design_id  TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			success    INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_design_events_kind ON design_event_logs(kind, created_at);`)
	if err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Log records an event. Non-blocking: errors are logged via slog but do not
// propagate.
func (l *EventLogger) Log(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO design_event_logs (event_id, kind, session_id, design_id, detail, success, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		l.newID(), ev.Kind, ev.SessionID, ev.DesignID, ev.Detail, ev.Success, time.Now().Unix())
	if err != nil {
		slog.Error("audit event log failed", "error", err, "kind", ev.Kind)
	}
}

// Cleanup deletes events older than the retention threshold. Zero or
// negative days means no cleanup.
func (l *EventLogger) Cleanup(ctx context.Context, days int) error {
	if l == nil || days <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(days)*86400
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM design_event_logs WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("audit: cleanup: %w", err)
	}
	return nil
}
