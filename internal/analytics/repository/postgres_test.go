package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyaya/boardling-sub008/internal/analytics/domain"
)

// arrayConverter lets string slices through to the mock the way the pgx driver accepts them.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return ids, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.ValueConverterOption(arrayConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

var sampleColumns = []string{"wallet_id", "period_start", "transaction_count", "active_days", "total_volume", "sequence_complexity_score"}

func TestListSamples(t *testing.T) {
	repo, mock := newMock(t)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	week := since.AddDate(0, 0, 7)
	ids := []string{"w1", "w2"}
	mock.ExpectQuery(listSamplesSQL).WithArgs(ids, since).WillReturnRows(
		sqlmock.NewRows(sampleColumns).
			AddRow("w1", since, 4, 3, 12.5, 40.0).
			AddRow("w1", week, 0, 0, 0.0, 0.0).
			AddRow("w2", since, 9, 5, 101.0, 65.0))

	samples, err := repo.ListSamples(context.Background(), ids, since)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, "w1", samples[0].WalletID)
	assert.Equal(t, 4, samples[0].TransactionCount)
	assert.Equal(t, 12.5, samples[0].TotalVolume)
	assert.Equal(t, week, samples[1].PeriodStart)
	assert.False(t, samples[1].Active())
	assert.Equal(t, 65.0, samples[2].SequenceComplexityScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSamples_NoWallets(t *testing.T) {
	repo, mock := newMock(t)
	samples, err := repo.ListSamples(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.NotNil(t, samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSamples_QueryError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(listSamplesSQL).WillReturnError(errors.New("timeout"))
	_, err := repo.ListSamples(context.Background(), []string{"w1"}, time.Now())
	assert.Error(t, err)
}

func TestListSamples_ScanError(t *testing.T) {
	repo, mock := newMock(t)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(listSamplesSQL).WithArgs([]string{"w1"}, since).WillReturnRows(
		sqlmock.NewRows(sampleColumns).AddRow("w1", since, "many", 3, 1.0, 1.0))
	_, err := repo.ListSamples(context.Background(), []string{"w1"}, since)
	assert.Error(t, err)
}

func TestUpsertSamples_OneTransaction(t *testing.T) {
	repo, mock := newMock(t)
	p := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	samples := []domain.ActivitySample{
		{WalletID: "w1", PeriodStart: p, TransactionCount: 3, ActiveDays: 2, TotalVolume: 1.5, SequenceComplexityScore: 30},
		{WalletID: "w2", PeriodStart: p, TransactionCount: 0},
	}
	mock.ExpectBegin()
	mock.ExpectExec(upsertSampleSQL).WithArgs("w1", p, 3, 2, 1.5, 30.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertSampleSQL).WithArgs("w2", p, 0, 0, 0.0, 0.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertSamples(context.Background(), samples))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSamples_RollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	p := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(upsertSampleSQL).WithArgs("ghost", p, 1, 1, 0.0, 0.0).WillReturnError(errors.New("violates foreign key constraint"))
	mock.ExpectRollback()

	err := repo.UpsertSamples(context.Background(), []domain.ActivitySample{{WalletID: "ghost", PeriodStart: p, TransactionCount: 1, ActiveDays: 1}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSamples_Empty(t *testing.T) {
	repo, mock := newMock(t)
	require.NoError(t, repo.UpsertSamples(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
