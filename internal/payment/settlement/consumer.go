// Package settlement applies shielded payments observed on chain and published on Kafka. A message only
// names the intent it pays and the transaction; what the payment buys comes from the stored intent.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soyaya/boardling-sub008/internal/payment/domain"
	"github.com/soyaya/boardling-sub008/internal/platform/apperr"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Settler settles one intent and applies what it bought.
type Settler interface {
	Settle(ctx context.Context, intentID, txRef string) (*domain.Intent, error)
}

// Payment is one observed transaction quoting an intent memo.
type Payment struct {
	IntentID string `json:"intent_id"`
	TxRef    string `json:"tx_ref"`
}

// Consumer reads payments from a topic and settles them one at a time.
type Consumer struct {
	reader  messageReader
	settler Settler
}

// NewKafkaConsumer returns a Consumer reading topic as part of consumer group groupID.
func NewKafkaConsumer(brokers []string, topic, groupID string, settler Settler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})
	return &Consumer{reader: r, settler: settler}
}

// Decode parses and validates one message value.
func Decode(value []byte) (Payment, error) {
	var p Payment
	if err := json.Unmarshal(value, &p); err != nil {
		return p, fmt.Errorf("decode payment: %w", err)
	}
	p.IntentID, p.TxRef = strings.TrimSpace(p.IntentID), strings.TrimSpace(p.TxRef)
	switch {
	case p.IntentID == "":
		return p, errors.New("payment has no intent_id")
	case p.TxRef == "":
		return p, errors.New("payment has no tx_ref")
	}
	return p, nil
}

// Run consumes until ctx is cancelled. Malformed messages and payments that cannot settle (unknown or
// expired intents) are logged and committed. Any other failure stops the consumer without committing,
// so the payment is redelivered on restart.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offsets: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	p, err := Decode(msg.Value)
	if err != nil {
		log.Printf("settlement: skipping message at %s/%d offset %d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		return nil
	}
	in, err := c.settler.Settle(ctx, p.IntentID, p.TxRef)
	if err == nil {
		log.Printf("settlement: intent %s settled by %s (%s)", in.ID, p.TxRef, in.Purpose)
		return nil
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		return fmt.Errorf("settle intent %s: %w", p.IntentID, err)
	}
	log.Printf("settlement: rejecting payment %s for intent %s: %v", p.TxRef, p.IntentID, err)
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
