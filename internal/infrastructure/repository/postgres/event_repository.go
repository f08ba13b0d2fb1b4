package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/textify/internal/core/domain"
)

const schemaLockKey int64 = 2026101601

// EventRepository stores the session audit trail written by the worker.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS session_events (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_session_events_type ON session_events(event_type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Append is idempotent on the event id, so broker redeliveries are harmless.
func (r *EventRepository) Append(ctx context.Context, event domain.SessionEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO session_events (id, session_id, event_type, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`, event.ID, event.SessionID, event.Type, []byte(event.Payload), event.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, event_type, payload, occurred_at
FROM session_events
WHERE session_id = $1
ORDER BY occurred_at ASC, id ASC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.SessionEvent, 0, limit)
	for rows.Next() {
		var event domain.SessionEvent
		var payload []byte
		if err := rows.Scan(&event.ID, &event.SessionID, &event.Type, &payload, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return events, nil
}
