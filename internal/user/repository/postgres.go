package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tm65023/Story/internal/db"
	"github.com/tm65023/Story/internal/user/domain"
)

const userColumns = `id, email, is_verified, created_at, updated_at`

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository that uses the given handle (a *sql.DB or a *sql.Tx).
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows. Ids that are not UUIDs are treated as missing.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// Email comparison is exact.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// CreateIfAbsent persists u. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, is_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id`,
		u.ID, u.Email, u.IsVerified, u.CreatedAt, u.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// MarkVerified flags the user as verified and bumps updated_at.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeletePendingEnrollment locks the user row, then deletes it if it is still unverified and still
// owns codeID. The lock waits out a concurrent transaction reissuing a code for the same user;
// the delete that follows sees that transaction's committed state.
func (r *PostgresRepository) DeletePendingEnrollment(ctx context.Context, id, codeID string) (bool, error) {
	var verified bool
	err := r.db.QueryRowContext(ctx, `SELECT is_verified FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	if verified {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM users
		 WHERE id = $1 AND is_verified = FALSE
		   AND EXISTS (SELECT 1 FROM one_time_codes WHERE id = $2 AND user_id = $1)`,
		id, codeID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}
