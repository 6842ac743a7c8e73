package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm65023/Story/internal/db"
	"github.com/tm65023/Story/internal/db/migrate"
	"github.com/tm65023/Story/internal/otp/domain"
)

// testDatabaseEnv names a disposable Postgres database for the tests below. They are skipped when it is unset.
const testDatabaseEnv = "STORY_TEST_DATABASE_URL"

func openTestDB(t *testing.T) (*PostgresRepository, *db.TxManager) {
	t.Helper()
	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping Postgres test", testDatabaseEnv)
	}
	require.NoError(t, migrate.Run(dsn, migrate.DirectionUp))
	sqlDB, err := db.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresRepository(sqlDB), db.NewTxManager(sqlDB)
}

// seedCode inserts a fresh user and one pending code for it, returning the user id and the code hash.
func seedCode(t *testing.T, repo *PostgresRepository, expiresAt time.Time) (string, string) {
	t.Helper()
	ctx := context.Background()
	userID := uuid.NewString()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO users (id, email, is_verified, created_at, updated_at) VALUES ($1, $2, FALSE, now(), now())`,
		userID, userID+"@story.test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = repo.db.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})
	hash := "hash-" + userID
	require.NoError(t, repo.Create(ctx, &domain.Code{
		ID:        uuid.NewString(),
		UserID:    userID,
		CodeHash:  hash,
		Purpose:   domain.PurposeEnrollment,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}))
	return userID, hash
}

func TestConsume_Postgres_ConcurrentSingleWinner(t *testing.T) {
	repo, txm := openTestDB(t)
	userID, hash := seedCode(t, repo, time.Now().Add(10*time.Minute))

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		start = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := txm.WithTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
				c, err := NewPostgresRepository(tx).Consume(ctx, userID, hash, time.Now())
				if err != nil {
					return err
				}
				if c != nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful consumes = %d, want 1", wins)
	}
	c, err := repo.Consume(context.Background(), userID, hash, time.Now())
	require.NoError(t, err)
	assert.Nil(t, c, "a consumed code must not be consumable again")
}

func TestConsume_Postgres_Expired(t *testing.T) {
	repo, _ := openTestDB(t)
	expiresAt := time.Now().Add(-time.Second).UTC()
	userID, hash := seedCode(t, repo, expiresAt)

	c, err := repo.Consume(context.Background(), userID, hash, time.Now())
	require.NoError(t, err)
	assert.Nil(t, c)

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}
