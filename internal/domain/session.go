package domain

import "time"

// SessionState is an immutable snapshot of everything the UI observes.
// A new value is built and swapped in for every transition.
type SessionState struct {
	Version             uint64   `json:"version"`
	Loading             bool     `json:"loading"`
	SignedIn            bool     `json:"signed_in"`
	Profile             *Profile `json:"profile,omitempty"`
	PendingNotification bool     `json:"pending_notification"`
}

// NotificationKind tells the UI how to present a message.
type NotificationKind string

const (
	NotificationInfo  NotificationKind = "info"
	NotificationError NotificationKind = "error"
)

// Notification is a one-shot user-facing message.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}
