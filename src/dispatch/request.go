package dispatch

import (
	"time"

	"eabridge/src/externalmodel"
	"eabridge/src/model"
)

type timerKind int

const (
	timerAuth timerKind = iota + 1
	timerStall
	timerVerify
)

type armedTimer struct {
	t   *time.Timer
	seq uint64
}

// request is an execution request. It lives only while in flight and is touched
// only by the coordinator loop.
type request struct {
	id          string
	signal      externalmodel.Signal
	config      model.SymbolConfig
	side        string
	credentials externalmodel.Credentials

	state          State
	orders         int
	index          int
	succeeded      int
	failed         int
	verifyAttempts int

	session    Session
	cancelOpen func()
	buffered   [][]byte
	finalized  bool

	requestedAt  time.Time
	lastActivity time.Time

	timers   map[timerKind]*armedTimer
	timerSeq uint64
}

// startTimer (re)arms kind for r. A fire from an earlier arming is ignored.
func (c *Coordinator) startTimer(r *request, kind timerKind, d time.Duration) {
	c.stopTimer(r, kind)
	r.timerSeq++
	seq := r.timerSeq
	id := r.id
	r.timers[kind] = &armedTimer{
		seq: seq,
		t: time.AfterFunc(d, func() {
			c.post(timerEvent{requestID: id, kind: kind, seq: seq})
		}),
	}
}

func (c *Coordinator) stopTimer(r *request, kind timerKind) {
	if t, ok := r.timers[kind]; ok {
		t.t.Stop()
		delete(r.timers, kind)
	}
}
