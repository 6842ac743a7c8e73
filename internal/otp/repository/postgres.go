package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tm65023/Story/internal/db"
	"github.com/tm65023/Story/internal/otp/domain"
)

// PostgresRepository stores one-time codes in the one_time_codes table.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a code repository that uses the given handle (a *sql.DB or a *sql.Tx).
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create persists the code. The code must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Code) error {
	if !c.Purpose.Valid() {
		return fmt.Errorf("invalid purpose %q", c.Purpose)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO one_time_codes (id, user_id, code_hash, purpose, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.CodeHash, string(c.Purpose), c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUserAndPurpose(ctx context.Context, userID string, purpose domain.Purpose) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE user_id = $1 AND purpose = $2`, userID, string(purpose))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume deletes the matching code with DELETE ... RETURNING so that the row lock decides a single winner.
func (r *PostgresRepository) Consume(ctx context.Context, userID, codeHash string, now time.Time) (*domain.Code, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	var (
		c       domain.Code
		purpose string
	)
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM one_time_codes
		 WHERE id = (
		     SELECT id FROM one_time_codes
		     WHERE user_id = $1 AND code_hash = $2 AND expires_at > $3
		     ORDER BY created_at DESC
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, user_id, code_hash, purpose, expires_at, created_at`,
		userID, codeHash, now,
	).Scan(&c.ID, &c.UserID, &c.CodeHash, &purpose, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Purpose = domain.Purpose(purpose)
	return &c, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
