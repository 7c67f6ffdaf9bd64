package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	logger "github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every state transition and discard, keyed by request id so a
// request's events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	queue  chan kafka.Message
}

// NewKafkaSink returns nil when no brokers are configured.
func NewKafkaSink(cfg Config) *KafkaSink {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		BatchTimeout:           50 * time.Millisecond,
	}
	logger.WithFields(map[string]interface{}{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
	}).Info("Kafka outcome events enabled")
	return newKafkaSink(writer, cfg)
}

func newKafkaSink(writer messageWriter, cfg Config) *KafkaSink {
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}
	return &KafkaSink{writer: writer, queue: make(chan kafka.Message, size)}
}

func (k *KafkaSink) Notify(ctx context.Context, e Event) {
	if e.Kind == KindProgress {
		return
	}
	value, err := json.Marshal(e)
	if err != nil {
		return
	}
	key := e.RequestID
	if key == "" {
		key = e.SignalID
	}

	select {
	case k.queue <- kafka.Message{Key: []byte(key), Value: value, Time: e.At}:
	default:
		logger.WithField("component", "kafka").Warn("Kafka queue full, dropping event")
	}
}

// Start publishes queued events until ctx is done, then closes the writer.
func (k *KafkaSink) Start(ctx context.Context) {
	defer func() {
		if err := k.writer.Close(); err != nil {
			logger.WithError(err).Warn("Kafka writer close failed")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-k.queue:
			if err := k.writer.WriteMessages(ctx, msg); err != nil {
				logger.WithError(err).WithField("component", "kafka").Warn("Kafka publish failed")
			}
		}
	}
}
