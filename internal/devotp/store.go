// Package devotp provides an in-memory store for issued codes by email and purpose, used only when dev OTP mode
// is enabled (GET /api/dev/otp).
package devotp

import (
	"context"
	"sync"
	"time"

	"github.com/tm65023/Story/internal/otp/domain"
)

// Store holds plain codes for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores code for (email, purpose) until expiresAt, replacing any earlier code.
	Put(ctx context.Context, email string, purpose domain.Purpose, code string, expiresAt time.Time)
	// Get returns the code for (email, purpose) if present and not expired. An empty purpose returns the most
	// recently issued code of either purpose. Returns ok false if missing or expired.
	Get(ctx context.Context, email string, purpose domain.Purpose) (code string, ok bool)
}

type key struct {
	email   string
	purpose domain.Purpose
}

type entry struct {
	code      string
	issuedAt  time.Time
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[key]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[key]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(ctx context.Context, email string, purpose domain.Purpose, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key{email, purpose}] = entry{code: code, issuedAt: s.nowF(), expiresAt: expiresAt}
}

func (s *MemoryStore) Get(ctx context.Context, email string, purpose domain.Purpose) (string, bool) {
	if purpose != "" {
		return s.get(key{email, purpose})
	}
	var best entry
	found := false
	for _, p := range []domain.Purpose{domain.PurposeEnrollment, domain.PurposeReauthentication} {
		s.mu.RLock()
		e, ok := s.m[key{email, p}]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if _, live := s.get(key{email, p}); !live {
			continue
		}
		if !found || e.issuedAt.After(best.issuedAt) {
			best, found = e, true
		}
	}
	return best.code, found
}

func (s *MemoryStore) get(k key) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
