// Package history persists conversation transcripts. Each history is a list
// of role-tagged messages keyed by a unique identifier, scoped under the
// character configuration it was recorded with.
package history

import "time"

// Message is one turn of a recorded conversation.
type Message struct {
	Role      string    `json:"role"` // "human" or "ai"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Meta is a history's listing entry: its identifier plus a preview of the
// latest message so clients can render a picker.
type Meta struct {
	UID           string    `json:"uid"`
	LatestMessage *Message  `json:"latest_message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Store is the persistence contract for conversation histories.
type Store interface {
	// Create makes a fresh, empty history and returns its identifier.
	Create(confUID string) (string, error)
	// List returns metadata for every history under a configuration, newest
	// first.
	List(confUID string) ([]Meta, error)
	// Get loads every message of one history.
	Get(confUID, uid string) ([]Message, error)
	// Append adds one message to a history, creating the file if needed.
	Append(confUID, uid string, msg Message) error
	// Delete removes a history, reporting whether it existed.
	Delete(confUID, uid string) (bool, error)
}
