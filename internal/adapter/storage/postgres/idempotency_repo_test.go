package postgres

import (
	"context"
	"testing"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := &domain.IdempotencyRecord{
		Key:           "account:u-1:penal_code:client-key",
		TransactionID: uuid.New(),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	staleBefore := rec.CreatedAt.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs(rec.Key, rec.TransactionID, rec.CreatedAt, staleBefore).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, rec, staleBefore)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Create_LiveKeyKept(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := &domain.IdempotencyRecord{
		Key:           "guest:a@b.cm:penal_code:k",
		TransactionID: uuid.New(),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	staleBefore := rec.CreatedAt.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs(rec.Key, rec.TransactionID, rec.CreatedAt, staleBefore).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, rec, staleBefore)
	assert.ErrorIs(t, err, ErrIdempotencyKeyLive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	txID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM idempotency_keys WHERE key").
		WithArgs("account:u-1:penal_code:k").
		WillReturnRows(pgxmock.NewRows([]string{"key", "transaction_id", "created_at"}).
			AddRow("account:u-1:penal_code:k", txID, now))

	result, err := repo.Get(context.Background(), "account:u-1:penal_code:k")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txID, result.TransactionID)
	assert.Equal(t, now, result.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM idempotency_keys WHERE key").
		WithArgs("nonexistent-key").
		WillReturnRows(pgxmock.NewRows([]string{"key", "transaction_id", "created_at"}))

	result, err := repo.Get(context.Background(), "nonexistent-key")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
