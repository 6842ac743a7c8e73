package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tm65023/Story/internal/security"
	"github.com/tm65023/Story/internal/session/domain"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	err      error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]domain.Session{}}
}

func (m *memStore) Create(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.sessions, id)
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return m.err }

func newTestBinder(t *testing.T) (*Binder, *memStore) {
	t.Helper()
	signer, err := security.NewTokenSigner([]byte("0123456789abcdef0123456789abcdef"), "story", "story-web")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	store := newMemStore()
	return NewBinder(store, signer, time.Hour), store
}

func TestEstablishAndResolve(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()

	h, err := b.Establish(ctx, "user-1")
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if h.Token == "" || h.SessionID == "" {
		t.Fatal("handle missing token or session id")
	}
	if len(store.sessions) != 1 {
		t.Fatalf("store has %d sessions, want 1", len(store.sessions))
	}

	sess, err := b.Resolve(ctx, h.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess == nil || sess.UserID != "user-1" {
		t.Fatalf("Resolve = %+v, want user-1", sess)
	}
}

func TestEstablish_DistinctSessions(t *testing.T) {
	b, _ := newTestBinder(t)
	ctx := context.Background()
	h1, _ := b.Establish(ctx, "user-1")
	h2, _ := b.Establish(ctx, "user-1")
	if h1.SessionID == h2.SessionID || h1.Token == h2.Token {
		t.Error("two establishes should produce distinct sessions")
	}
}

func TestEstablish_StoreError(t *testing.T) {
	b, store := newTestBinder(t)
	store.err = errors.New("down")
	if _, err := b.Establish(context.Background(), "user-1"); err == nil {
		t.Fatal("Establish should fail when the store fails")
	}
}

func TestEstablish_EmptyUser(t *testing.T) {
	b, _ := newTestBinder(t)
	if _, err := b.Establish(context.Background(), ""); err == nil {
		t.Fatal("Establish should reject empty user id")
	}
}

func TestResolve_Absent(t *testing.T) {
	b, _ := newTestBinder(t)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		sess, err := b.Resolve(context.Background(), tok)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tok, err)
		}
		if sess != nil {
			t.Errorf("Resolve(%q) = %+v, want nil", tok, sess)
		}
	}
}

func TestResolve_RecordGone(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()
	h, _ := b.Establish(ctx, "user-1")
	delete(store.sessions, h.SessionID)

	sess, err := b.Resolve(ctx, h.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess != nil {
		t.Error("Resolve should return nil when the store record is gone")
	}
}

func TestResolve_Expired(t *testing.T) {
	b, _ := newTestBinder(t)
	ctx := context.Background()
	h, _ := b.Establish(ctx, "user-1")

	b.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	sess, err := b.Resolve(ctx, h.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sess != nil {
		t.Error("Resolve should return nil past the absolute lifetime")
	}
}

func TestResolve_UserMismatch(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()
	h, _ := b.Establish(ctx, "user-1")
	s := store.sessions[h.SessionID]
	s.UserID = "user-2"
	store.sessions[h.SessionID] = s

	sess, _ := b.Resolve(ctx, h.Token)
	if sess != nil {
		t.Error("Resolve should reject a token whose subject differs from the record")
	}
}

func TestResolve_StoreError(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()
	h, _ := b.Establish(ctx, "user-1")
	store.err = errors.New("down")
	if _, err := b.Resolve(ctx, h.Token); err == nil {
		t.Fatal("Resolve should surface store errors")
	}
}

func TestDestroy(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()
	h, _ := b.Establish(ctx, "user-1")

	if err := b.Destroy(ctx, h.Token); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if len(store.sessions) != 0 {
		t.Error("Destroy should delete the record")
	}
	if err := b.Destroy(ctx, h.Token); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
	sess, _ := b.Resolve(ctx, h.Token)
	if sess != nil {
		t.Error("destroyed session should not resolve")
	}
}

func TestDestroy_Malformed(t *testing.T) {
	b, _ := newTestBinder(t)
	for _, tok := range []string{"", "garbage"} {
		if err := b.Destroy(context.Background(), tok); err != nil {
			t.Errorf("Destroy(%q): %v", tok, err)
		}
	}
}

func TestNewBinder_DefaultTTL(t *testing.T) {
	b := NewBinder(newMemStore(), nil, 0)
	if b.TTL() != DefaultTTL {
		t.Errorf("TTL = %v, want %v", b.TTL(), DefaultTTL)
	}
}
