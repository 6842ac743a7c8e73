package repository

import (
	"context"
	"time"

	"github.com/tm65023/Story/internal/otp/domain"
)

// Repository defines persistence for one-time codes.
type Repository interface {
	Create(ctx context.Context, c *domain.Code) error
	// DeleteByUserAndPurpose removes every pending code of the given purpose for the user.
	DeleteByUserAndPurpose(ctx context.Context, userID string, purpose domain.Purpose) error
	// Consume atomically deletes and returns the unexpired code matching userID and codeHash.
	// Returns nil when no such code exists. Concurrent callers never both receive the same code.
	Consume(ctx context.Context, userID, codeHash string, now time.Time) (*domain.Code, error)
	// DeleteExpired removes codes that expired before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
