package notify

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	logger "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushSink sends terminal outcomes as Firebase topic notifications. Events are queued
// and sent by a single worker; a full queue drops the event.
type PushSink struct {
	client messenger
	topic  string
	queue  chan *messaging.Message
}

// NewPushSink returns nil when no credentials file is configured.
func NewPushSink(ctx context.Context, cfg Config) (*PushSink, error) {
	if cfg.PushCredentialsFile == "" {
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.PushCredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}

	logger.WithField("topic", cfg.PushTopic).Info("Push notifications enabled")
	return newPushSink(client, cfg), nil
}

func newPushSink(client messenger, cfg Config) *PushSink {
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}
	return &PushSink{client: client, topic: cfg.PushTopic, queue: make(chan *messaging.Message, size)}
}

// Start runs the send worker until ctx is done.
func (p *PushSink) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			id, err := p.client.Send(ctx, msg)
			if err != nil {
				logger.WithError(err).WithField("component", "push").Warn("Push send failed")
				continue
			}
			logger.WithFields(map[string]interface{}{
				"component": "push",
				"id":        id,
			}).Debug("Push sent")
		}
	}
}

func (p *PushSink) Notify(ctx context.Context, e Event) {
	if !e.Terminal() {
		return
	}

	msg := &messaging.Message{
		Topic: p.topic,
		Notification: &messaging.Notification{
			Title: pushTitle(e),
			Body:  pushBody(e),
		},
		Data: map[string]string{
			"requestId": e.RequestID,
			"signalId":  e.SignalID,
			"symbol":    e.Symbol,
			"state":     e.State,
			"succeeded": strconv.Itoa(e.Succeeded),
			"failed":    strconv.Itoa(e.Failed),
		},
	}

	select {
	case p.queue <- msg:
	default:
		logger.WithField("component", "push").Warn("Push queue full, dropping notification")
	}
}

func pushTitle(e Event) string {
	switch {
	case e.Kind == KindDiscarded:
		return e.Symbol + " signal skipped"
	case e.State == StateSucceeded:
		return e.Symbol + " executed"
	case e.State == StatePartial:
		return e.Symbol + " partially executed"
	default:
		return e.Symbol + " failed"
	}
}

func pushBody(e Event) string {
	if e.Kind == KindDiscarded || e.State == StateFailed {
		return e.Message
	}
	return fmt.Sprintf("%d of %d orders placed", e.Succeeded, e.Orders)
}
