package controller

import (
	"context"
	"errors"
	"time"

	"eabridge/src/dispatch"
	"eabridge/src/externalmodel"
	"eabridge/src/mapper"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
)

// Submitter takes actionable signals for execution.
type Submitter interface {
	Submit(ctx context.Context, sig externalmodel.Signal) error
}

// SignalRecorder keeps the polled signal log.
type SignalRecorder interface {
	Append(ctx context.Context, batch []model.SignalLog) error
}

// SignalController turns poll batches into dispatch submissions.
type SignalController struct {
	symbols    ActiveSymbols
	dispatcher Submitter
	signalLog  SignalRecorder
	exceptions ExceptionRecorder
	service    string
	now        func() time.Time
}

func NewSignalController(cfg Config, symbols ActiveSymbols, dispatcher Submitter, signalLog SignalRecorder, exceptions ExceptionRecorder) *SignalController {
	return &SignalController{
		symbols:    symbols,
		dispatcher: dispatcher,
		signalLog:  signalLog,
		exceptions: exceptions,
		service:    cfg.ServiceName,
		now:        time.Now,
	}
}

// HandleSignals logs the whole batch, then submits the actionable signals in
// batch order. Signals for inactive symbols are dropped for good.
func (c *SignalController) HandleSignals(ctx context.Context, signals []externalmodel.Signal) {
	if len(signals) == 0 {
		return
	}

	if c.signalLog != nil {
		if err := c.signalLog.Append(ctx, mapper.MapSignalsToLogs(signals, c.now())); err != nil {
			Capture(ctx, c.exceptions, c.service, "controller", "HandleSignals", "warn", err, map[string]interface{}{
				"batch": len(signals),
			})
		}
	}

	submitted := 0
	for _, sig := range signals {
		if !IsActionable(sig, c.symbols) {
			logger.WithFields(map[string]interface{}{
				"signal": sig.ID,
				"symbol": sig.Asset,
			}).Debug("Signal for inactive symbol discarded")
			continue
		}

		err := c.dispatcher.Submit(ctx, sig)
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, dispatch.ErrQueueFull):
			// already recorded as a discard by the coordinator
		case errors.Is(err, context.Canceled), errors.Is(err, dispatch.ErrStopped):
			return
		default:
			Capture(ctx, c.exceptions, c.service, "controller", "HandleSignals", "error", err, map[string]interface{}{
				"signal": sig.ID,
				"symbol": sig.Asset,
			})
		}
	}

	logger.WithFields(map[string]interface{}{
		"received":  len(signals),
		"submitted": submitted,
	}).Info("Signal batch handled")
}

// ReportPollError records a failed poll tick.
func (c *SignalController) ReportPollError(ctx context.Context, method string, err error) {
	Capture(ctx, c.exceptions, c.service, "poller", method, "warn", err, nil)
}
