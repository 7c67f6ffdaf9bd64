package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eabridge/src/externalmodel"
	"eabridge/src/model"
	"eabridge/src/notify"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// maxBuffered bounds frames kept while a session is still opening.
const maxBuffered = 32

// pruneEvery spaces out sweeps of the seen set.
const pruneEvery = time.Minute

// Deps are the coordinator's collaborators.
type Deps struct {
	Target      Target
	Symbols     SymbolResolver
	Accounts    AccountStore
	Credentials CredentialOpener
	Outcomes    OutcomeRecorder
	Sink        notify.Sink
}

// Coordinator owns the single in-flight execution request. Every state change
// happens on the goroutine running Run; everything else talks to it by posting
// events, so transitions are serialized without locks.
type Coordinator struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	events chan any
	done   chan struct{}

	// owned by the Run goroutine
	ctx      context.Context
	queue    []externalmodel.Signal
	seen     map[string]time.Time
	pruned   time.Time
	current  *request
	stopping bool
	// opening is the request whose Target.Open has not returned yet. Until it
	// does, and its session is released, nothing else may be opened.
	opening  string
}

func New(cfg Config, deps Deps) *Coordinator {
	cfg = cfg.withDefaults()
	if deps.Sink == nil {
		deps.Sink = notify.LogSink{}
	}
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		events: make(chan any, cfg.MailboxSize),
		done:   make(chan struct{}),
		seen:   make(map[string]time.Time),
	}
}

type submitEvent struct {
	signal externalmodel.Signal
	reply  chan error
}

type openedEvent struct {
	requestID string
	session   Session
	err       error
}

type messageEvent struct {
	requestID string
	raw       []byte
}

type timerEvent struct {
	requestID string
	kind      timerKind
	seq       uint64
}

type cancelEvent struct{ reply chan bool }

type resetEvent struct{ reply chan struct{} }

type snapshotEvent struct{ reply chan Status }

// Run processes events until ctx is done. A request still in flight at that
// point is finalized from what was confirmed so far.
func (c *Coordinator) Run(ctx context.Context) {
	c.ctx = ctx
	defer close(c.done)

	logger.WithField("component", "coordinator").Info("Dispatch coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.stopping = true
			if c.current != nil {
				c.finishFromProgress(c.current, "coordinator stopped")
			}
			c.drainOpening()
			logger.WithField("component", "coordinator").Info("Dispatch coordinator stopped")
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// drainOpening waits for an abandoned open to return so its session gets released.
func (c *Coordinator) drainOpening() {
	if c.opening == "" {
		return
	}
	deadline := time.NewTimer(c.cfg.OpenTimeout + c.cfg.ReleaseTimeout)
	defer deadline.Stop()
	for c.opening != "" {
		select {
		case ev := <-c.events:
			if e, ok := ev.(openedEvent); ok {
				c.onOpened(e)
			}
		case <-deadline.C:
			logger.WithFields(map[string]interface{}{
				"component": "coordinator",
				"requestID": c.opening,
			}).Warn("Terminal open did not return before shutdown")
			return
		}
	}
}

// Done is closed once Run has returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) post(ev any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Submit hands an actionable signal to the coordinator. Signals are dispatched one
// at a time in submission order; an id already seen since the last Reset, and within
// SeenRetention, is ignored.
// A full queue drops the signal and returns ErrQueueFull.
func (c *Coordinator) Submit(ctx context.Context, sig externalmodel.Signal) error {
	reply := make(chan error, 1)
	select {
	case c.events <- submitEvent{signal: sig, reply: reply}:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel closes the in-flight request as if the user closed the execution surface.
// It reports whether there was one.
func (c *Coordinator) Cancel(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	if err := c.request(ctx, cancelEvent{reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-c.done:
		return false, ErrStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Reset forgets queued signals and seen ids. The in-flight request is left alone.
func (c *Coordinator) Reset(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := c.request(ctx, resetEvent{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) Snapshot(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := c.request(ctx, snapshotEvent{reply: reply}); err != nil {
		return Status{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (c *Coordinator) request(ctx context.Context, ev any) error {
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) handle(ev any) {
	switch e := ev.(type) {
	case submitEvent:
		e.reply <- c.onSubmit(e.signal)
	case openedEvent:
		c.onOpened(e)
	case messageEvent:
		c.onMessage(e)
	case timerEvent:
		c.onTimer(e)
	case cancelEvent:
		e.reply <- c.onCancel()
	case resetEvent:
		c.queue = nil
		c.seen = make(map[string]time.Time)
		e.reply <- struct{}{}
	case snapshotEvent:
		e.reply <- c.status()
	}
}

func (c *Coordinator) onSubmit(sig externalmodel.Signal) error {
	now := c.now()
	c.pruneSeen(now)
	if _, ok := c.seen[sig.ID]; ok {
		return nil
	}
	c.seen[sig.ID] = now

	busy := c.current != nil || c.opening != ""
	if busy && c.cfg.QueueCapacity > 0 && len(c.queue) >= c.cfg.QueueCapacity {
		c.discard(sig, ErrQueueFull)
		return ErrQueueFull
	}
	c.queue = append(c.queue, sig)
	c.advance()
	return nil
}

// pruneSeen drops ids first seen more than SeenRetention ago.
func (c *Coordinator) pruneSeen(now time.Time) {
	if now.Sub(c.pruned) < pruneEvery {
		return
	}
	c.pruned = now
	for id, at := range c.seen {
		if now.Sub(at) > c.cfg.SeenRetention {
			delete(c.seen, id)
		}
	}
}

// advance arms queued signals until one is in flight or the queue is empty. An
// abandoned open still holds the slot.
func (c *Coordinator) advance() {
	for c.current == nil && c.opening == "" && len(c.queue) > 0 && !c.stopping {
		sig := c.queue[0]
		c.queue = c.queue[1:]
		c.arm(sig)
	}
}

func (c *Coordinator) arm(sig externalmodel.Signal) {
	cfg, ok := c.deps.Symbols.Resolve(sig.Asset)
	if !ok {
		c.discard(sig, ErrSymbolNotConfigured)
		return
	}

	acc, err := c.deps.Accounts.FindByPlatform(c.ctx, cfg.Platform)
	if err != nil {
		c.discard(sig, fmt.Errorf("%w: %v", ErrAccountNotConfigured, err))
		return
	}
	if !acc.Complete() {
		c.discard(sig, fmt.Errorf("%w for %s", ErrAccountNotConfigured, cfg.Platform))
		return
	}
	password, err := c.deps.Credentials.Open(acc.PasswordSealed)
	if err != nil {
		c.discard(sig, fmt.Errorf("%w: stored password unreadable", ErrAccountNotConfigured))
		return
	}

	side := cfg.OrderSide(sig.Action)
	if side != model.DirectionBuy && side != model.DirectionSell {
		c.discard(sig, fmt.Errorf("%w: no order side for action %q", ErrConfigResolution, sig.Action))
		return
	}

	r := &request{
		id:          uuid.NewString(),
		signal:      sig,
		config:      cfg,
		side:        side,
		orders:      cfg.Trades(),
		state:       StateArmed,
		requestedAt: c.now(),
		timers:      make(map[timerKind]*armedTimer),
		credentials: externalmodel.Credentials{Login: acc.Login, Password: password, Server: acc.Server},
	}
	c.current = r
	c.transition(r, StateArmed, "Signal armed")
	c.open(r)
}

func (c *Coordinator) open(r *request) {
	openCtx, cancel := context.WithTimeout(c.ctx, c.cfg.OpenTimeout)
	r.cancelOpen = cancel

	req := externalmodel.SessionRequest{
		RequestID:   r.id,
		Platform:    string(r.config.Platform),
		Symbol:      r.config.Symbol,
		Credentials: r.credentials,
	}
	inbox := func(raw []byte) {
		c.post(messageEvent{requestID: r.id, raw: raw})
	}

	c.transition(r, StateDispatched, "Opening terminal")
	c.opening = r.id
	go func() {
		session, err := c.deps.Target.Open(openCtx, req, inbox)
		if !c.post(openedEvent{requestID: req.RequestID, session: session, err: err}) && session != nil {
			c.releaseSession(req.RequestID, session)
		}
	}()
}

func (c *Coordinator) onOpened(e openedEvent) {
	if c.opening == e.requestID {
		c.opening = ""
	}
	r := c.current
	if r == nil || r.id != e.requestID || r.finalized {
		if e.session != nil {
			c.releaseSession(e.requestID, e.session)
		}
		c.advance()
		return
	}
	if e.err != nil {
		c.finish(r, StateFailed, fmt.Sprintf("Terminal unavailable: %v", e.err))
		return
	}

	r.session = e.session
	r.lastActivity = c.now()
	c.transition(r, StateAuthenticating, "Logging in")
	c.startTimer(r, timerAuth, c.cfg.authTimeout(r.config.Platform))

	buffered := r.buffered
	r.buffered = nil
	for _, raw := range buffered {
		if r.finalized {
			return
		}
		c.process(r, raw)
	}
}

func (c *Coordinator) onMessage(e messageEvent) {
	r := c.current
	if r == nil || r.id != e.requestID || r.finalized {
		logger.WithFields(map[string]interface{}{
			"component": "coordinator",
			"requestID": e.requestID,
		}).Debug("Dropping message for a request that is no longer in flight")
		return
	}
	if r.session == nil {
		if len(r.buffered) < maxBuffered {
			r.buffered = append(r.buffered, e.raw)
		}
		return
	}
	c.process(r, e.raw)
}

func (c *Coordinator) process(r *request, raw []byte) {
	msg, err := externalmodel.ParseTerminalMessage(raw)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "coordinator",
			"requestID": r.id,
		}).WithError(err).Debug("Ignoring malformed terminal message")
		return
	}

	r.lastActivity = c.now()
	if r.state == StateExecuting {
		c.startTimer(r, timerStall, c.cfg.StallTimeout)
	}

	if msg.IsStep() {
		c.progress(r, msg.Message)
		return
	}

	switch r.state {
	case StateAuthenticating:
		c.onAuthenticating(r, msg)
	case StateExecuting:
		c.onExecuting(r, msg)
	case StateVerifying:
		c.onVerifying(r, msg)
	}
}

func (c *Coordinator) onAuthenticating(r *request, msg externalmodel.TerminalMessage) {
	switch msg.Type {
	case externalmodel.MessageAuthSuccess, externalmodel.MessageSuccess:
		c.stopTimer(r, timerAuth)
		c.setConnected(r, true)
		r.index = 0
		c.transition(r, StateExecuting, "Logged in")
		c.startTimer(r, timerStall, c.cfg.StallTimeout)
		c.sendOrder(r)
	case externalmodel.MessageAuthFailed:
		c.setConnected(r, false)
		c.finish(r, StateFailed, authRejected(msg.Message).Error())
	case externalmodel.MessageError:
		c.finish(r, StateFailed, nonEmpty(msg.Message, "Terminal error"))
	case externalmodel.MessageClose:
		c.finish(r, StateFailed, nonEmpty(msg.Message, "Terminal closed before login"))
	}
}

func (c *Coordinator) onExecuting(r *request, msg externalmodel.TerminalMessage) {
	switch msg.Type {
	case externalmodel.MessageTradeExecuted, externalmodel.MessageSuccess:
		r.succeeded++
		c.nextOrder(r)
	case externalmodel.MessageError, externalmodel.MessageAuthFailed:
		r.failed++
		logger.WithFields(map[string]interface{}{
			"component": "coordinator",
			"requestID": r.id,
			"order":     r.index,
		}).Warn(nonEmpty(msg.Message, "Order failed"))
		c.nextOrder(r)
	case externalmodel.MessageClose:
		c.finishFromProgress(r, nonEmpty(msg.Message, "Terminal closed"))
	}
}

func (c *Coordinator) onVerifying(r *request, msg externalmodel.TerminalMessage) {
	switch msg.Type {
	case externalmodel.MessageSuccess:
		switch {
		case r.succeeded > 0 && r.failed == 0:
			c.finish(r, StateSucceeded, fmt.Sprintf("%d of %d orders placed", r.succeeded, r.orders))
		case r.succeeded > 0:
			c.finish(r, StatePartial, fmt.Sprintf("%d of %d orders placed", r.succeeded, r.orders))
		default:
			c.finish(r, StateFailed, "No order was placed")
		}
	case externalmodel.MessageClose:
		c.finishFromProgress(r, nonEmpty(msg.Message, "Terminal closed"))
	}
}

func (c *Coordinator) nextOrder(r *request) {
	r.index++
	if r.index < r.orders {
		c.transition(r, StateExecuting, fmt.Sprintf("Placing order %d of %d", r.index+1, r.orders))
		c.sendOrder(r)
		return
	}

	c.stopTimer(r, timerStall)
	r.verifyAttempts = 0
	c.transition(r, StateVerifying, "Verifying orders")
	c.startTimer(r, timerVerify, c.cfg.VerifyInitialDelay)
}

func (c *Coordinator) sendOrder(r *request) {
	sig := r.signal
	cmd := externalmodel.TerminalCommand{
		Type:      externalmodel.CommandPlaceOrder,
		RequestID: r.id,
		Platform:  string(r.config.Platform),
		Order: &externalmodel.OrderInstruction{
			Index:      r.index,
			Symbol:     r.config.Symbol,
			Side:       r.side,
			LotSize:    r.config.LotSize,
			Price:      sig.Price.String(),
			TakeProfit: sig.TakeProfit.String(),
			StopLoss:   sig.StopLoss.String(),
		},
	}
	if err := r.session.Send(c.ctx, cmd); err != nil {
		c.finishFromProgress(r, fmt.Sprintf("Terminal unreachable: %v", err))
	}
}

func (c *Coordinator) onTimer(e timerEvent) {
	r := c.current
	if r == nil || r.id != e.requestID || r.finalized {
		return
	}
	t, ok := r.timers[e.kind]
	if !ok || t.seq != e.seq {
		return
	}
	delete(r.timers, e.kind)

	switch e.kind {
	case timerAuth:
		c.setConnected(r, false)
		c.finish(r, StateFailed, ErrAuthenticationTimeout.Error())
	case timerStall:
		c.finishFromProgress(r, "Terminal stopped responding")
	case timerVerify:
		c.verify(r)
	}
}

func (c *Coordinator) verify(r *request) {
	if r.verifyAttempts >= c.cfg.VerifyMaxAttempts {
		if r.succeeded > 0 {
			c.finish(r, StatePartial, ErrVerificationTimeout.Error())
			return
		}
		c.finish(r, StateFailed, "No order was placed")
		return
	}

	r.verifyAttempts++
	cmd := externalmodel.TerminalCommand{
		Type:      externalmodel.CommandVerify,
		RequestID: r.id,
		Platform:  string(r.config.Platform),
		Attempt:   r.verifyAttempts,
	}
	if err := r.session.Send(c.ctx, cmd); err != nil {
		c.finishFromProgress(r, fmt.Sprintf("Terminal unreachable: %v", err))
		return
	}
	c.startTimer(r, timerVerify, c.cfg.VerifyInterval)
}

func (c *Coordinator) onCancel() bool {
	r := c.current
	if r == nil {
		return false
	}
	c.finishFromProgress(r, "Cancelled by user")
	return true
}

// finishFromProgress ends r as PARTIAL when any order was confirmed, FAILED otherwise.
func (c *Coordinator) finishFromProgress(r *request, reason string) {
	if r.succeeded > 0 {
		c.finish(r, StatePartial, reason)
		return
	}
	c.finish(r, StateFailed, reason)
}

// finish is the only way out of a request: timers stop, the session is released,
// the outcome is recorded and the next queued signal is armed.
func (c *Coordinator) finish(r *request, state State, reason string) {
	if r.finalized {
		return
	}
	r.finalized = true
	for kind := range r.timers {
		c.stopTimer(r, kind)
	}
	if r.cancelOpen != nil {
		r.cancelOpen()
	}
	if r.session != nil {
		c.releaseSession(r.id, r.session)
	}
	r.credentials = externalmodel.Credentials{}

	r.state = state
	completed := c.now()
	c.record(&model.ExecutionLog{
		RequestID:       r.id,
		SignalID:        r.signal.ID,
		Symbol:          r.config.Symbol,
		Side:            r.side,
		Platform:        string(r.config.Platform),
		LotSize:         r.config.LotSize,
		Price:           r.signal.Price.String(),
		TakeProfit:      r.signal.TakeProfit.String(),
		StopLoss:        r.signal.StopLoss.String(),
		OrdersRequested: r.orders,
		OrdersSucceeded: r.succeeded,
		OrdersFailed:    r.failed,
		Status:          executionStatus(state),
		Reason:          reason,
		RequestedAt:     r.requestedAt,
		CompletedAt:     &completed,
	})
	c.notify(r, notify.KindState, reason)

	c.current = nil
	c.advance()
}

func (c *Coordinator) discard(sig externalmodel.Signal, reason error) {
	logger.WithFields(map[string]interface{}{
		"component": "coordinator",
		"signal":    sig.ID,
		"symbol":    sig.Asset,
	}).WithError(reason).Warn("Signal discarded")

	c.record(&model.ExecutionLog{
		SignalID:    sig.ID,
		Symbol:      model.NormalizeSymbol(sig.Asset),
		Side:        sig.Action,
		Price:       sig.Price.String(),
		TakeProfit:  sig.TakeProfit.String(),
		StopLoss:    sig.StopLoss.String(),
		Status:      model.ExecutionStatusDiscarded,
		Reason:      reason.Error(),
		RequestedAt: c.now(),
	})
	c.deps.Sink.Notify(c.ctx, notify.Event{
		Kind:     notify.KindDiscarded,
		SignalID: sig.ID,
		Symbol:   model.NormalizeSymbol(sig.Asset),
		Message:  reason.Error(),
		At:       c.now(),
	})
}

func (c *Coordinator) record(entry *model.ExecutionLog) {
	if c.deps.Outcomes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.cfg.ReleaseTimeout+time.Second)
	defer cancel()
	if err := c.deps.Outcomes.Create(ctx, entry); err != nil {
		logger.WithError(err).WithField("component", "coordinator").Error("Failed to record execution outcome")
	}
}

func (c *Coordinator) setConnected(r *request, connected bool) {
	if err := c.deps.Accounts.SetConnected(c.ctx, r.config.Platform, connected); err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "coordinator",
			"requestID": r.id,
			"platform":  r.config.Platform,
		}).WithError(err).Error("Failed to update account connection state")
	}
}

func (c *Coordinator) releaseSession(requestID string, s Session) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReleaseTimeout)
	defer cancel()
	if err := s.Release(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithFields(map[string]interface{}{
			"component": "coordinator",
			"requestID": requestID,
		}).WithError(err).Warn("Terminal release failed")
	}
}

func (c *Coordinator) transition(r *request, state State, message string) {
	r.state = state
	c.notify(r, notify.KindState, message)
}

func (c *Coordinator) progress(r *request, message string) {
	c.notify(r, notify.KindProgress, message)
}

func (c *Coordinator) notify(r *request, kind notify.Kind, message string) {
	c.deps.Sink.Notify(c.ctx, notify.Event{
		Kind:       kind,
		RequestID:  r.id,
		SignalID:   r.signal.ID,
		Symbol:     r.config.Symbol,
		Platform:   string(r.config.Platform),
		State:      string(r.state),
		Message:    message,
		OrderIndex: r.index,
		Orders:     r.orders,
		Succeeded:  r.succeeded,
		Failed:     r.failed,
		At:         c.now(),
	})
}

func (c *Coordinator) status() Status {
	s := Status{State: StateIdle, Queued: len(c.queue)}
	r := c.current
	if r == nil {
		return s
	}
	at := r.requestedAt
	s.State = r.state
	s.RequestID = r.id
	s.SignalID = r.signal.ID
	s.Symbol = r.config.Symbol
	s.Platform = string(r.config.Platform)
	s.OrderIndex = r.index
	s.Orders = r.orders
	s.Succeeded = r.succeeded
	s.Failed = r.failed
	s.RequestedAt = &at
	if !r.lastActivity.IsZero() {
		last := r.lastActivity
		s.LastActivity = &last
	}
	return s
}

func executionStatus(s State) string {
	switch s {
	case StateSucceeded:
		return model.ExecutionStatusSucceeded
	case StatePartial:
		return model.ExecutionStatusPartial
	}
	return model.ExecutionStatusFailed
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
