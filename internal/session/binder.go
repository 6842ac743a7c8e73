// Package session binds a verified user to a server-side session and a signed cookie token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tm65023/Story/internal/security"
	"github.com/tm65023/Story/internal/session/domain"
	"github.com/tm65023/Story/internal/session/repository"
)

// DefaultTTL is the absolute session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Handle is what the client carries: the signed token and when it stops being valid.
type Handle struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// Binder establishes, resolves and destroys sessions. The store is the source of truth;
// a validly signed token whose record is gone resolves to nothing.
type Binder struct {
	store  repository.Repository
	signer *security.TokenSigner
	ttl    time.Duration
	now    func() time.Time
}

// NewBinder returns a Binder. ttl <= 0 selects DefaultTTL.
func NewBinder(store repository.Repository, signer *security.TokenSigner, ttl time.Duration) *Binder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Binder{store: store, signer: signer, ttl: ttl, now: time.Now}
}

// TTL returns the absolute session lifetime.
func (b *Binder) TTL() time.Duration {
	return b.ttl
}

// Establish creates a session for userID and returns its handle.
func (b *Binder) Establish(ctx context.Context, userID string) (*Handle, error) {
	if userID == "" {
		return nil, errors.New("session: user id is required")
	}
	id, err := security.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	now := b.now().UTC()
	sess := &domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}
	if err := b.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, err := b.signer.Issue(id, userID, sess.ExpiresAt)
	if err != nil {
		_ = b.store.Delete(ctx, id)
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Handle{Token: token, SessionID: id, ExpiresAt: sess.ExpiresAt}, nil
}

// Resolve returns the live session behind token, or nil when the token is malformed, expired,
// unknown to the store or bound to another user. Errors are store failures only.
func (b *Binder) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	sessionID, userID, err := b.signer.Validate(token)
	if err != nil {
		return nil, nil
	}
	sess, err := b.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.UserID != userID || sess.Expired(b.now()) {
		return nil, nil
	}
	return sess, nil
}

// Destroy deletes the session behind token. Absent or malformed tokens are not an error.
func (b *Binder) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sessionID, _, err := b.signer.Validate(token)
	if err != nil {
		return nil
	}
	if err := b.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks the session store.
func (b *Binder) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}
