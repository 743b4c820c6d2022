package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaRelay forwards every hub change to a Kafka topic keyed by table and
// row, so external consumers see the same feed as in-process subscribers.
type KafkaRelay struct {
	w     *kafka.Writer
	topic string
}

// NewKafkaRelay creates an async writer for topic on brokers.
func NewKafkaRelay(brokers []string, topic string) *KafkaRelay {
	l := zap.S().With("component", "kafka", "topic", topic)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Async:                  true,
		Logger:                 &infoLogger{l: l},
		ErrorLogger:            &errorLogger{l: l},
		AllowAutoTopicCreation: true,
	}
	return &KafkaRelay{w: w, topic: topic}
}

// Attach subscribes the relay to every table on hub.
// POST: The returned function detaches the relay
func (r *KafkaRelay) Attach(hub *Hub) func() {
	return hub.Subscribe(AllTables, func(c Change) {
		msg, err := Message(r.topic, c)
		if err != nil {
			zap.L().Error("changefeed_event", zap.String("event", "relay_marshal"), zap.Error(err))
			return
		}
		if err := r.w.WriteMessages(context.Background(), msg); err != nil {
			zap.L().Error("changefeed_event", zap.String("event", "relay_write"), zap.Error(err))
		}
	})
}

// Close flushes and closes the writer.
func (r *KafkaRelay) Close() {
	if err := r.w.Close(); err != nil {
		zap.L().Error("changefeed_event", zap.String("event", "relay_close"), zap.Error(err))
	}
}

// Message builds the Kafka message for a change.
func Message(topic string, c Change) (kafka.Message, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(fmt.Sprintf("%s:%s", c.Table, c.RowID)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(c.Op)},
		},
	}, nil
}

type infoLogger struct {
	l *zap.SugaredLogger
}

func (il *infoLogger) Printf(format string, args ...any) {
	il.l.Debugf(format, args...)
}

type errorLogger struct {
	l *zap.SugaredLogger
}

func (el *errorLogger) Printf(format string, args ...any) {
	el.l.Errorf(format, args...)
}
