package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm65023/Story/internal/otp/domain"
)

const (
	testUserID = "7f0c1a4e-2b1d-4c55-9a0e-6f6d8c2b9b11"
	testCodeID = "0b9e0a0c-8e5d-4c1f-8f38-3f7e3b1f2a10"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresRepository(sqlDB), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	c := &domain.Code{
		ID: testCodeID, UserID: testUserID, CodeHash: "hash",
		Purpose: domain.PurposeEnrollment, ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO one_time_codes`).
		WithArgs(testCodeID, testUserID, "hash", "enrollment", c.ExpiresAt, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InvalidPurpose(t *testing.T) {
	repo, _ := newMock(t)

	err := repo.Create(context.Background(), &domain.Code{ID: testCodeID, UserID: testUserID, Purpose: "bogus"})
	assert.Error(t, err)
}

func TestDeleteByUserAndPurpose(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM one_time_codes WHERE user_id = \$1 AND purpose = \$2`).
		WithArgs(testUserID, "reauthentication").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByUserAndPurpose(context.Background(), testUserID, domain.PurposeReauthentication))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsume_Match(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	expires := now.Add(5 * time.Minute)

	mock.ExpectQuery(`DELETE FROM one_time_codes .* RETURNING`).
		WithArgs(testUserID, "hash", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code_hash", "purpose", "expires_at", "created_at"}).
			AddRow(testCodeID, testUserID, "hash", "reauthentication", expires, now))

	c, err := repo.Consume(context.Background(), testUserID, "hash", now)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, testCodeID, c.ID)
	assert.Equal(t, domain.PurposeReauthentication, c.Purpose)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsume_NoMatch(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`DELETE FROM one_time_codes`).
		WithArgs(testUserID, "hash", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code_hash", "purpose", "expires_at", "created_at"}))

	c, err := repo.Consume(context.Background(), testUserID, "hash", now)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestConsume_DBError(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`DELETE FROM one_time_codes`).WillReturnError(errors.New("deadlock"))

	_, err := repo.Consume(context.Background(), testUserID, "hash", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestConsume_NonUUIDUser(t *testing.T) {
	repo, mock := newMock(t)

	c, err := repo.Consume(context.Background(), "nope", "hash", time.Now())
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM one_time_codes WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
