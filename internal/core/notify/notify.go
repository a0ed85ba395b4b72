// Package notify defines the notification domain: the Notification model,
// the Repository contract for the backend, the error taxonomy, and the pure
// view functions that derive filtered lists and statistics from a snapshot.
package notify

import (
	"time"
)

// Type classifies a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Types lists every known notification type in display order.
var Types = []Type{TypeInfo, TypeSuccess, TypeWarning, TypeError}

// IsValid reports whether t is a known notification type.
func (t Type) IsValid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

// Priority ranks a notification's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every known priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Notification is a single inbox entry. ID is the identity; Read and ReadAt
// are the only fields changed locally before the server confirms.
type Notification struct {
	ID        string     `json:"id"`
	Type      Type       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Priority  Priority   `json:"priority"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Preferences control local delivery side effects only.
type Preferences struct {
	BrowserNotifications bool `json:"browserNotifications" yaml:"browser_notifications"`
	SoundNotifications   bool `json:"soundNotifications"   yaml:"sound_notifications"`
}

// Status filters by read state.
type Status string

const (
	StatusAll    Status = "all"
	StatusRead   Status = "read"
	StatusUnread Status = "unread"
)

// Filters narrows a list of notifications. Zero values match everything.
type Filters struct {
	Type     Type
	Status   Status
	Priority Priority
	Search   string
	Page     int
}

// ListResult is the response of a list call.
type ListResult struct {
	Items       []Notification `json:"notifications"`
	UnreadCount int            `json:"unreadCount"`
}

// CreatePayload is the body for creating a single notification.
type CreatePayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Type     Type     `json:"type"`
	Priority Priority `json:"priority"`
	UserID   string   `json:"userId"`
}

// BulkPayload is the body for creating one notification per recipient.
type BulkPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Type     Type     `json:"type"`
	Priority Priority `json:"priority"`
	UserIDs  []string `json:"userIds"`
	SenderID string   `json:"senderId"`
}

// ConnectionStatus is the lifecycle phase of the push subscription.
type ConnectionStatus string

const (
	ConnIdle         ConnectionStatus = "idle"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnOpen         ConnectionStatus = "open"
	ConnReconnecting ConnectionStatus = "reconnecting"
	ConnFailed       ConnectionStatus = "failed"
)

// ConnectionState is owned by the subscription manager and read by everyone else.
type ConnectionState struct {
	Status  ConnectionStatus
	Attempt int
}

// Degraded reports whether real-time updates have been given up on.
func (s ConnectionState) Degraded() bool {
	return s.Status == ConnFailed
}
