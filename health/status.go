// Package health tracks the observed state of listener processes under
// test. The process manager reports transitions (starting, ready,
// stopped, crashed); runners read the aggregate at the end of a run.
package health

import "time"

// Listener states as reported by the process manager.
const (
	StateStarting = "starting"
	StateReady    = "ready"
	StateStopped  = "stopped"
	StateCrashed  = "crashed"
)

// Status is the health state of one listener implementation.
type Status struct {
	Implementation string    `json:"implementation"`
	State          string    `json:"state"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Alive reports whether the listener is expected to be accepting datagrams.
func (s Status) Alive() bool {
	return s.State == StateReady
}

// Failed reports whether the listener ended abnormally.
func (s Status) Failed() bool {
	return s.State == StateCrashed
}

// NewStatus builds a status with the current timestamp.
func NewStatus(implementation, state, message string) Status {
	return Status{
		Implementation: implementation,
		State:          state,
		Message:        message,
		Timestamp:      time.Now(),
	}
}
