package repository

import (
	"context"
	"time"

	"github.com/tm65023/Story/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// CreateIfAbsent inserts u unless a user with the same email exists.
	// Returns false without error when the email was already taken.
	CreateIfAbsent(ctx context.Context, u *domain.User) (bool, error)
	// MarkVerified sets is_verified. Idempotent.
	MarkVerified(ctx context.Context, id string, at time.Time) error
	// DeletePendingEnrollment removes the user, cascading codes and sessions, only while it is
	// unverified and codeID is still one of its codes. Reports whether the user was removed.
	// The user row is locked before the checks, so call it inside a transaction.
	DeletePendingEnrollment(ctx context.Context, id, codeID string) (bool, error)
}
