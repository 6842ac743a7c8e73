package repository

import (
	"context"
	"time"

	"github.com/tm65023/Story/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations key records on security.HashSessionID(id).
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if it does not exist or has expired.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Sweeper is implemented by stores that do not expire records on their own.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
