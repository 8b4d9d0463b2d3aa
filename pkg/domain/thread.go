package domain

import (
	"slices"
	"time"
)

// Role tells who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleResponder Role = "responder"
)

// Location is an optional geolocation attached to a user turn.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Turn is one entry of a thread's history.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	Location   *Location `json:"location,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	// Responder is set on responder turns only.
	Responder Responder `json:"responder,omitempty"`
}

// Thread is a conversation identity spanning multiple turns.
// The ID never changes once assigned and History is append-only.
type Thread struct {
	ID        string    `json:"id"`
	Active    Responder `json:"active"`
	History   []Turn    `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Sealed carries the encrypted history when the thread is persisted
	// through an encrypting store. It is empty on live threads.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewThread creates a thread owned by the initial responder.
func NewThread(id string, initial Responder, now time.Time) *Thread {
	return &Thread{
		ID:        id,
		Active:    initial,
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a turn to the history.
func (t *Thread) Append(turn Turn) {
	t.History = append(t.History, turn)
	if turn.Timestamp.After(t.UpdatedAt) {
		t.UpdatedAt = turn.Timestamp
	}
}

// Snapshot returns a copy that does not share the history backing array.
func (t *Thread) Snapshot() *Thread {
	cp := *t
	cp.History = slices.Clone(t.History)
	cp.Sealed = slices.Clone(t.Sealed)
	return &cp
}

// Idle reports whether the thread has seen no activity for at least ttl.
func (t *Thread) Idle(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(t.UpdatedAt) >= ttl
}
