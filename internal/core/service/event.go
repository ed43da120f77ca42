package service

import "sync"

// EventType names an attendance state change.
type EventType string

const (
	EventStarted       EventType = "started"
	EventRestored      EventType = "restored"
	EventBreakStarted  EventType = "break_started"
	EventBreakEnded    EventType = "break_ended"
	EventEnded         EventType = "ended"
	EventEndIgnored    EventType = "end_ignored"
	EventRevived       EventType = "revived"
	EventReviveSkipped EventType = "revive_skipped"
	EventFlushed       EventType = "flushed"
)

// Event describes one attendance state change.
type Event struct {
	Type         EventType `json:"type"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	AttendanceID string    `json:"attendance_id,omitempty"`

	// Detail is the outcome reason, e.g. "stale" or "too_old".
	Detail string `json:"detail,omitempty"`

	// EndReason is set on ended events.
	EndReason string `json:"end_reason,omitempty"`

	// At is the server time of the change (Unix ms).
	At int64 `json:"at"`
}

// Observer receives attendance events. Implementations must not block;
// they are called while the user's attendance lock is held.
type Observer interface {
	OnAttendanceEvent(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// OnAttendanceEvent implements Observer.
func (f ObserverFunc) OnAttendanceEvent(ev Event) {
	f(ev)
}

// observerSet fans events out to registered observers.
type observerSet struct {
	mu        sync.RWMutex
	observers []Observer
}

func (s *observerSet) add(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *observerSet) emit(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		o.OnAttendanceEvent(ev)
	}
}
