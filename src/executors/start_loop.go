package executors

import (
	"context"
	"errors"
	"sync"
	"time"

	"eabridge/src/externalmodel"
	"eabridge/src/utils"

	logger "github.com/sirupsen/logrus"
)

var ErrNoLicense = errors.New("no license key to scope the polling session")

// SignalSource is where new signals come from.
type SignalSource interface {
	ResolveExecutionScope(ctx context.Context, licenseKey string) (string, error)
	Poll(ctx context.Context, scope string, since *time.Time) ([]externalmodel.Signal, error)
	ForgetScopes()
}

// BatchHandler receives each non-empty poll result in the order the source returned it.
type BatchHandler func(ctx context.Context, signals []externalmodel.Signal)

// ErrorReporter is told about every failed tick. The loop keeps going regardless.
type ErrorReporter func(ctx context.Context, method string, err error)

// Poller runs the monitoring session: one poll immediately, then one per LoopPeriod,
// each asking only for signals newer than the session's watermark.
type Poller struct {
	cfg    Config
	source SignalSource
	handle BatchHandler
	report ErrorReporter
	now    func() time.Time

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	licenseKey string
	scope      string
	watermark  *time.Time
}

func NewPoller(cfg Config, source SignalSource, handle BatchHandler) *Poller {
	return &Poller{
		cfg:    cfg,
		source: source,
		handle: handle,
		report: logError,
		now:    time.Now,
	}
}

// OnError replaces the default log-only reporter.
func (p *Poller) OnError(report ErrorReporter) {
	if report != nil {
		p.report = report
	}
}

// Start begins monitoring for licenseKey. Starting again with the same key is a
// no-op; a different key restarts the session from scratch. A new session's
// watermark is its start time, so signals updated before it are never handed on.
func (p *Poller) Start(ctx context.Context, licenseKey string) error {
	if licenseKey == "" {
		return ErrNoLicense
	}

	p.mu.Lock()
	if p.cancel != nil && p.licenseKey == licenseKey {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	p.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	start := p.sessionStart()

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.licenseKey = licenseKey
	p.watermark = &start
	p.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"component": "poller",
		"period":    p.cfg.LoopPeriod.String(),
		"since":     start,
	}).Info("Signal monitoring started")

	go p.loop(loopCtx, done)
	return nil
}

// Stop ends the session and forgets its scope and watermark. It waits for an
// in-progress tick to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.mu.Lock()
	p.licenseKey = ""
	p.scope = ""
	p.watermark = nil
	p.mu.Unlock()
	p.source.ForgetScopes()

	logger.WithField("component", "poller").Info("Signal monitoring stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) Scope() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scope
}

func (p *Poller) Watermark() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watermark == nil {
		return nil
	}
	w := *p.watermark
	return &w
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.LoopPeriod)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick is one poll cycle. Failures are reported and leave the watermark where it was.
func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	licenseKey, scope := p.licenseKey, p.scope
	since := p.watermark
	p.mu.Unlock()

	if scope == "" {
		resolved, err := p.source.ResolveExecutionScope(ctx, licenseKey)
		if err != nil {
			if ctx.Err() == nil {
				p.report(ctx, "ResolveExecutionScope", err)
			}
			return
		}
		scope = resolved
		p.mu.Lock()
		p.scope = scope
		p.mu.Unlock()
	}

	if since == nil {
		from := p.sessionStart()
		since = &from
	}

	signals, err := p.source.Poll(ctx, scope, since)
	if err != nil {
		if ctx.Err() == nil {
			p.report(ctx, "Poll", err)
		}
		return
	}

	p.advance(since, signals)

	logger.WithFields(map[string]interface{}{
		"component": "poller",
		"scope":     scope,
		"count":     len(signals),
	}).Debug("Poll completed")

	if len(signals) > 0 {
		p.handle(ctx, signals)
	}
}

// sessionStart is the first watermark of a session: now, less the configured lookback.
func (p *Poller) sessionStart() time.Time {
	start := utils.ToMillis(p.now())
	if p.cfg.InitialLookback > 0 {
		start = start.Add(-p.cfg.InitialLookback)
	}
	return start
}

// advance moves the watermark to the newest latestUpdate seen. It never moves back.
func (p *Poller) advance(since *time.Time, signals []externalmodel.Signal) {
	var next *time.Time
	if since != nil {
		s := *since
		next = &s
	}
	for _, s := range signals {
		if next == nil || s.LatestUpdate.After(*next) {
			latest := s.LatestUpdate
			next = &latest
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if next != nil && (p.watermark == nil || next.After(*p.watermark)) {
		p.watermark = next
	}
}

func logError(ctx context.Context, method string, err error) {
	logger.WithFields(map[string]interface{}{
		"component": "poller",
		"method":    method,
	}).WithError(err).Warn("Poll tick failed, retrying on the next tick")
}
