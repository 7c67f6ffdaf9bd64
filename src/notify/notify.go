package notify

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

type Kind string

const (
	// KindState is a state transition of an execution request.
	KindState Kind = "state"
	// KindProgress is narration from the terminal; the state is unchanged.
	KindProgress Kind = "progress"
	// KindDiscarded is an actionable signal that never reached the terminal.
	KindDiscarded Kind = "discarded"
)

// Terminal request states, as reported in Event.State.
const (
	StateSucceeded = "SUCCEEDED"
	StatePartial   = "PARTIAL"
	StateFailed    = "FAILED"
)

// Event is one user-visible update from the dispatch coordinator.
type Event struct {
	Kind       Kind      `json:"kind"`
	RequestID  string    `json:"requestId,omitempty"`
	SignalID   string    `json:"signalId"`
	Symbol     string    `json:"symbol"`
	Platform   string    `json:"platform,omitempty"`
	State      string    `json:"state,omitempty"`
	Message    string    `json:"message,omitempty"`
	OrderIndex int       `json:"orderIndex"`
	Orders     int       `json:"orders"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	At         time.Time `json:"at"`
}

// Terminal reports whether the event closes a request.
func (e Event) Terminal() bool {
	if e.Kind == KindDiscarded {
		return true
	}
	switch e.State {
	case StateSucceeded, StatePartial, StateFailed:
		return e.Kind == KindState
	}
	return false
}

// Sink consumes coordinator events. Notify is called from the coordinator's loop
// and must not block.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

// Multi fans an event out to every sink.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, e)
		}
	}
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, e Event) {
	entry := logger.WithFields(map[string]interface{}{
		"component": "coordinator",
		"kind":      e.Kind,
		"requestID": e.RequestID,
		"signal":    e.SignalID,
		"symbol":    e.Symbol,
		"state":     e.State,
		"order":     e.OrderIndex,
		"succeeded": e.Succeeded,
		"failed":    e.Failed,
	})
	switch {
	case e.Kind == KindDiscarded:
		entry.Warn(e.Message)
	case e.State == StateFailed:
		entry.Error(e.Message)
	case e.Kind == KindProgress:
		entry.Debug(e.Message)
	default:
		entry.Info(e.Message)
	}
}
