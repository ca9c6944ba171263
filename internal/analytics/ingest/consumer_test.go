package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	fetchErr  error
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.fetchErr != nil {
		err := f.fetchErr
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func (f *fakeReader) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeStore struct {
	mu      sync.Mutex
	batches [][]domain.ActivitySample
	err     error
}

func (s *fakeStore) UpsertSamples(_ context.Context, samples []domain.ActivitySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := make([]domain.ActivitySample, len(samples))
	copy(cp, samples)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *fakeStore) all() []domain.ActivitySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ActivitySample
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "samples", Partition: 0, Offset: offset, Value: []byte(value)}
}

func TestDecode(t *testing.T) {
	s, err := Decode([]byte(`{"wallet_id":"w1","period_start":"2026-03-02T00:00:00+02:00","transaction_count":4,"active_days":2,"total_volume":1.5,"sequence_complexity_score":40}`))
	require.NoError(t, err)
	assert.Equal(t, "w1", s.WalletID)
	assert.Equal(t, time.UTC, s.PeriodStart.Location())
	assert.Equal(t, 4, s.TransactionCount)

	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{`},
		{"no wallet", `{"period_start":"2026-03-02T00:00:00Z"}`},
		{"no period", `{"wallet_id":"w1"}`},
		{"negative count", `{"wallet_id":"w1","period_start":"2026-03-02T00:00:00Z","transaction_count":-1}`},
		{"negative volume", `{"wallet_id":"w1","period_start":"2026-03-02T00:00:00Z","total_volume":-3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.value))
			assert.Error(t, err)
		})
	}
}

func TestConsumer_BatchesAndCommits(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		msg(1, `{"wallet_id":"w1","period_start":"2026-03-02T00:00:00Z","transaction_count":1}`),
		msg(2, `garbage`),
		msg(3, `{"wallet_id":"w2","period_start":"2026-03-02T00:00:00Z","active_days":3}`),
	}}
	store := &fakeStore{}
	c := newConsumer(r, store, 2, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return r.committedCount() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	got := store.all()
	require.Len(t, got, 2)
	assert.Equal(t, "w1", got[0].WalletID)
	assert.Equal(t, "w2", got[1].WalletID)
}

func TestConsumer_FlushesOnShutdown(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		msg(7, `{"wallet_id":"w1","period_start":"2026-03-02T00:00:00Z"}`),
	}}
	store := &fakeStore{}
	c := newConsumer(r, store, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.msgs) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Len(t, store.all(), 1)
	assert.Equal(t, 1, r.committedCount())
}

func TestConsumer_StoreFailureDoesNotCommit(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		msg(1, `{"wallet_id":"w1","period_start":"2026-03-02T00:00:00Z"}`),
	}}
	store := &fakeStore{err: errors.New("db down")}
	c := newConsumer(r, store, 1, time.Second)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Zero(t, r.committedCount())
}

func TestConsumer_FetchError(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("broker gone")}
	c := newConsumer(r, &fakeStore{}, 1, time.Second)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")

	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}
