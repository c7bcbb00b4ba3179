// Package kafka is the segmentio/kafka-go publisher driver for the event
// broadcaster.
package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes outbox envelopes synchronously, one message per
// committed command.
type Producer struct {
	topic  string
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string, log *zap.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: empty topic")
	}
	if log == nil {
		log = zap.NewNop()
	}
	errLog := log.Named("kafka").Sugar()

	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
			ErrorLogger:  kafka.LoggerFunc(errLog.Warnf),
		},
	}, nil
}

// Publish writes one message keyed by sequence. The hash balancer keeps a
// key on one partition.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
	if err != nil {
		return errors.Wrapf(err, "kafka: publish seq %s to %s", key, p.topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
