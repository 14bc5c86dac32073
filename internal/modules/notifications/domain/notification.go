package domain

import (
	"errors"
	"strings"
)

// Type classifies a notification for rendering (colour, icon).
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeSuccess Type = "success"
	TypeError   Type = "error"
)

// TimestampLayout is the display format stored in Notification.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultCapacity bounds a store when no explicit capacity is configured.
const DefaultCapacity = 200

var ErrNotificationNotFound = errors.New("notification not found")

var allowedTypes = map[string]Type{
	string(TypeInfo):    TypeInfo,
	string(TypeWarning): TypeWarning,
	string(TypeSuccess): TypeSuccess,
	string(TypeError):   TypeError,
}

// ParseType normalizes raw type names; unknown values report false.
func ParseType(raw string) (Type, bool) {
	t, ok := allowedTypes[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

// Notification is a transient user-facing alert with read state.
type Notification struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Type      Type   `json:"type"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Input carries the producer-supplied fields of a notification. The store owns id and read.
type Input struct {
	Message   string
	Type      Type
	Timestamp string
}

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeRead    ChangeKind = "read"
	ChangeReadAll ChangeKind = "read_all"
)

// Change is delivered to listeners after every state change with a consistent snapshot.
type Change struct {
	Kind   ChangeKind
	ID     int64
	Items  []Notification
	Unread int
}

// Listener observes store changes. It runs synchronously inside the mutating call.
type Listener func(Change)

// CountUnread derives the unread count of a list.
func CountUnread(items []Notification) int {
	count := 0
	for _, n := range items {
		if !n.Read {
			count++
		}
	}
	return count
}
