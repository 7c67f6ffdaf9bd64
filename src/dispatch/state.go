package dispatch

import "time"

type State string

const (
	StateIdle           State = "IDLE"
	StateArmed          State = "ARMED"
	StateDispatched     State = "DISPATCHED"
	StateAuthenticating State = "AUTHENTICATING"
	StateExecuting      State = "EXECUTING"
	StateVerifying      State = "VERIFYING"
	StateSucceeded      State = "SUCCEEDED"
	StatePartial        State = "PARTIAL"
	StateFailed         State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StatePartial || s == StateFailed
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State        State      `json:"state"`
	RequestID    string     `json:"requestId,omitempty"`
	SignalID     string     `json:"signalId,omitempty"`
	Symbol       string     `json:"symbol,omitempty"`
	Platform     string     `json:"platform,omitempty"`
	OrderIndex   int        `json:"orderIndex"`
	Orders       int        `json:"orders"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	Queued       int        `json:"queued"`
	RequestedAt  *time.Time `json:"requestedAt,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}
