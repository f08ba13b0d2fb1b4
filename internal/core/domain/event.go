package domain

import (
	"encoding/json"
	"time"
)

const (
	EventNotification = "textify.notification"
	EventExported     = "textify.export.created"
	EventExtracted    = "textify.extraction.settled"
)

// SessionEvent is an audit row built from a published notification or export.
type SessionEvent struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
