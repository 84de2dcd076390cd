package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes status-change events to a topic keyed by request id,
// so events for one request stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher returns nil when brokers is empty; the fanout skips nil
// publishers, so kafka stays optional.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log,
	}
}

func (p *KafkaPublisher) PublishStatusChange(ctx context.Context, event StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RequestID.String()),
		Value: payload,
		Time:  event.Timestamp,
	})
	if err != nil {
		p.log.Warn("failed to publish status event",
			zap.String("request_id", event.RequestID.String()),
			zap.Error(err))
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
