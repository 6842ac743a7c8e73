package devotp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tm65023/Story/internal/otp/domain"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "a@b.com", domain.PurposeEnrollment, "ABC123", time.Now().UTC().Add(5*time.Minute))

	code, ok := store.Get(ctx, "a@b.com", domain.PurposeEnrollment)
	if !ok {
		t.Fatal("Get should return code after Put")
	}
	if code != "ABC123" {
		t.Errorf("code = %q, want %q", code, "ABC123")
	}
	if _, ok := store.Get(ctx, "a@b.com", domain.PurposeReauthentication); ok {
		t.Error("Get with other purpose should miss")
	}
	if _, ok := store.Get(ctx, "A@b.com", domain.PurposeEnrollment); ok {
		t.Error("email lookup should be exact")
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(5 * time.Minute)

	store.Put(ctx, "a@b.com", domain.PurposeReauthentication, "AAAAAA", exp)
	store.Put(ctx, "a@b.com", domain.PurposeReauthentication, "BBBBBB", exp)

	code, _ := store.Get(ctx, "a@b.com", domain.PurposeReauthentication)
	if code != "BBBBBB" {
		t.Errorf("code = %q, want latest BBBBBB", code)
	}
}

func TestMemoryStore_Expired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	store.nowF = func() time.Time { return now }

	store.Put(ctx, "a@b.com", domain.PurposeEnrollment, "ABC123", now.Add(time.Minute))
	store.nowF = func() time.Time { return now.Add(2 * time.Minute) }

	if _, ok := store.Get(ctx, "a@b.com", domain.PurposeEnrollment); ok {
		t.Error("expired code should not be returned")
	}
	if len(store.m) != 0 {
		t.Error("expired entry should be removed")
	}
}

func TestMemoryStore_AnyPurposeReturnsLatest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	exp := now.Add(10 * time.Minute)

	store.nowF = func() time.Time { return now }
	store.Put(ctx, "a@b.com", domain.PurposeEnrollment, "ENROLL", exp)
	store.nowF = func() time.Time { return now.Add(time.Second) }
	store.Put(ctx, "a@b.com", domain.PurposeReauthentication, "LOGIN1", exp)

	code, ok := store.Get(ctx, "a@b.com", "")
	if !ok {
		t.Fatal("Get with empty purpose should find a code")
	}
	if code != "LOGIN1" {
		t.Errorf("code = %q, want most recent LOGIN1", code)
	}

	if _, ok := store.Get(ctx, "nobody@b.com", ""); ok {
		t.Error("unknown email should miss")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("u%d@b.com", i)
			store.Put(ctx, email, domain.PurposeEnrollment, "ABC123", exp)
			store.Get(ctx, email, "")
		}(i)
	}
	wg.Wait()

	if len(store.m) != 50 {
		t.Errorf("store has %d entries, want 50", len(store.m))
	}
}
