package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyaya/boardling-sub008/internal/privacy/domain"
	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestListByWallet(t *testing.T) {
	repo, mock := newMock(t)
	t1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "wallet_id", "previous_mode", "new_mode", "actor_id", "created_at"}).
		AddRow("a2", "w1", "public", "monetizable", "user-1", t2).
		AddRow("a1", "w1", "private", "public", "user-1", t1)
	mock.ExpectQuery(listAuditSQL).WithArgs("w1", int32(10)).WillReturnRows(rows)

	entries, err := repo.ListByWallet(context.Background(), "w1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a2", entries[0].ID)
	assert.Equal(t, walletdomain.PrivacyModeMonetizable, entries[0].NewMode)
	assert.Equal(t, walletdomain.PrivacyModePrivate, entries[1].PreviousMode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasPaidAccess(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(hasGrantSQL).WithArgs("w3", "user-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasPaidAccess(context.Background(), "w3", "user-9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateGrant(t *testing.T) {
	repo, mock := newMock(t)
	g := &domain.AccessGrant{ID: "g1", WalletID: "w3", RequesterID: "user-9", PaymentRef: "pi-1", CreatedAt: time.Now().UTC()}
	mock.ExpectExec(createGrantSQL).WithArgs("g1", "w3", "user-9", "pi-1", g.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), g))
	assert.NoError(t, mock.ExpectationsWereMet())
}
