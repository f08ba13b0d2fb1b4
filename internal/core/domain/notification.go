package domain

import "time"

type NotificationKind string

const (
	NotificationError NotificationKind = "error"
	NotificationInfo  NotificationKind = "info"
)

// Notification is a transient user-facing message, the service-side toast.
type Notification struct {
	SessionID   string           `json:"session_id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	At          time.Time        `json:"at"`
}
