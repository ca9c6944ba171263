package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

const listSamplesSQL = `SELECT wallet_id, period_start, transaction_count, active_days, total_volume, sequence_complexity_score
FROM activity_samples
WHERE wallet_id = ANY($1) AND period_start >= $2
ORDER BY wallet_id, period_start`

const upsertSampleSQL = `INSERT INTO activity_samples (wallet_id, period_start, transaction_count, active_days, total_volume, sequence_complexity_score)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (wallet_id, period_start) DO UPDATE SET
	transaction_count = EXCLUDED.transaction_count,
	active_days = EXCLUDED.active_days,
	total_volume = EXCLUDED.total_volume,
	sequence_complexity_score = EXCLUDED.sequence_complexity_score`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a sample store backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListSamples returns an empty slice when walletIDs is empty without querying.
func (r *PostgresRepository) ListSamples(ctx context.Context, walletIDs []string, since time.Time) ([]domain.ActivitySample, error) {
	if len(walletIDs) == 0 {
		return []domain.ActivitySample{}, nil
	}
	rows, err := r.db.QueryContext(ctx, listSamplesSQL, walletIDs, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActivitySample{}
	for rows.Next() {
		var s domain.ActivitySample
		if err := rows.Scan(&s.WalletID, &s.PeriodStart, &s.TransactionCount, &s.ActiveDays, &s.TotalVolume, &s.SequenceComplexityScore); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSamples is a no-op for an empty batch.
func (r *PostgresRepository) UpsertSamples(ctx context.Context, samples []domain.ActivitySample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range samples {
		if _, err := tx.ExecContext(ctx, upsertSampleSQL,
			s.WalletID, s.PeriodStart.UTC(), s.TransactionCount, s.ActiveDays, s.TotalVolume, s.SequenceComplexityScore,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
