package repository

import (
	"context"
	"time"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

// SampleReader supplies pre-aggregated activity samples produced by ingestion.
type SampleReader interface {
	// ListSamples returns samples for walletIDs with PeriodStart >= since, ordered by wallet then period.
	ListSamples(ctx context.Context, walletIDs []string, since time.Time) ([]domain.ActivitySample, error)
}

// SampleWriter stores samples delivered by the ingestion pipeline.
type SampleWriter interface {
	// UpsertSamples writes all samples in one transaction, replacing any sample for the same wallet and period.
	UpsertSamples(ctx context.Context, samples []domain.ActivitySample) error
}
