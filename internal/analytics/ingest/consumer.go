// Package ingest loads pre-aggregated activity samples published on Kafka into the sample store.
// Upstream chain indexing is out of scope; this consumer only validates and persists what it receives.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

// DefaultBatchSize is the number of messages written per store transaction.
const DefaultBatchSize = 100

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SampleWriter persists a batch of samples atomically.
type SampleWriter interface {
	UpsertSamples(ctx context.Context, samples []domain.ActivitySample) error
}

// Consumer reads activity samples from a topic and upserts them in batches. Offsets are committed only
// after the batch is stored, so a crash replays at most one batch; upserts make the replay harmless.
type Consumer struct {
	reader    messageReader
	store     SampleWriter
	batchSize int
	flush     time.Duration
}

// NewKafkaConsumer returns a Consumer reading topic as part of consumer group groupID.
func NewKafkaConsumer(brokers []string, topic, groupID string, store SampleWriter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})
	return newConsumer(r, store, DefaultBatchSize, 2*time.Second)
}

func newConsumer(r messageReader, store SampleWriter, batchSize int, flush time.Duration) *Consumer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Consumer{reader: r, store: store, batchSize: batchSize, flush: flush}
}

// Decode parses and validates one message value.
func Decode(value []byte) (domain.ActivitySample, error) {
	var s domain.ActivitySample
	if err := json.Unmarshal(value, &s); err != nil {
		return s, fmt.Errorf("decode sample: %w", err)
	}
	switch {
	case s.WalletID == "":
		return s, errors.New("sample has no wallet_id")
	case s.PeriodStart.IsZero():
		return s, errors.New("sample has no period_start")
	case s.TransactionCount < 0 || s.ActiveDays < 0 || s.TotalVolume < 0 || s.SequenceComplexityScore < 0:
		return s, errors.New("sample counters must not be negative")
	}
	s.PeriodStart = s.PeriodStart.UTC()
	return s, nil
}

// Run consumes until ctx is cancelled. Malformed messages are logged and skipped. A store failure
// stops the consumer without committing, so the batch is redelivered on restart.
func (c *Consumer) Run(ctx context.Context) error {
	var (
		pending []kafka.Message
		samples []domain.ActivitySample
	)
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if err := c.store.UpsertSamples(ctx, samples); err != nil {
			return fmt.Errorf("store samples: %w", err)
		}
		if err := c.reader.CommitMessages(ctx, pending...); err != nil {
			return fmt.Errorf("commit offsets: %w", err)
		}
		pending, samples = pending[:0], samples[:0]
		return nil
	}

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, c.flush)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				// Persist what was already read before stopping.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				ferr := flush(flushCtx)
				cancel()
				return ferr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if err := flush(ctx); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("fetch: %w", err)
		}

		pending = append(pending, msg)
		s, err := Decode(msg.Value)
		if err != nil {
			log.Printf("ingest: skipping message at %s/%d offset %d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		} else {
			samples = append(samples, s)
		}
		if len(pending) >= c.batchSize {
			if err := flush(ctx); err != nil {
				return err
			}
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
