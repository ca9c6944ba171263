package producer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soyaya/boardling-sub008/internal/telemetry/domain"
)

const writeTimeout = 5 * time.Second

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go. Events are keyed by wallet (or user) so
// changes to one wallet stay ordered within a partition.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer returns a producer writing to topic, or nil when brokers or topic are unset.
// Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return newKafkaProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, topic)
}

func newKafkaProducer(w messageWriter, topic string) *KafkaProducer {
	return &KafkaProducer{writer: w, topic: topic}
}

// Emit serializes the event as JSON and writes it with a bounded timeout.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msg := kafka.Message{
		Key:     []byte(event.Key()),
		Value:   payload,
		Time:    event.CreatedAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}},
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		log.Printf("telemetry: kafka emit to %s failed: %v", p.topic, err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
