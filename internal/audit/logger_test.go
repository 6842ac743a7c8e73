package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/tm65023/Story/internal/audit/domain"
	"github.com/tm65023/Story/internal/logging"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "192.168.1.1"
	}
	logger := NewLogger(repo, ipExtractor, logging.Discard())

	logger.LogEvent(context.Background(), "user-1", ActionVerifySuccess, ResourceAuth, "metadata")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.UserID != "user-1" {
		t.Errorf("user_id = %q, want %q", entry.UserID, "user-1")
	}
	if entry.Action != ActionVerifySuccess {
		t.Errorf("action = %q, want %q", entry.Action, ActionVerifySuccess)
	}
	if entry.Resource != ResourceAuth {
		t.Errorf("resource = %q, want %q", entry.Resource, ResourceAuth)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.Metadata != "metadata" {
		t.Errorf("metadata = %q, want %q", entry.Metadata, "metadata")
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil, logging.Discard())

	logger.LogEvent(context.Background(), "", ActionVerifyFailure, ResourceAuth, "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.entries[0].IP, "unknown")
	}
	if repo.entries[0].UserID != "" {
		t.Errorf("user_id = %q, want empty", repo.entries[0].UserID)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("database error")}
	logger := NewLogger(repo, nil, logging.Discard())

	// best-effort: no panic, no error
	logger.LogEvent(context.Background(), "user-1", ActionLogout, ResourceAuth, "")
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, nil, nil)
	logger.LogEvent(context.Background(), "user-1", ActionLogout, ResourceAuth, "")

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), "user-1", ActionLogout, ResourceAuth, "")
}

func TestMetadata(t *testing.T) {
	testCases := []struct {
		name string
		kv   []string
		want string
	}{
		{"empty", nil, ""},
		{"single key", []string{"k"}, ""},
		{"pair", []string{"purpose", "enrollment"}, `{"purpose":"enrollment"}`},
		{"odd trailing", []string{"a", "1", "b"}, `{"a":"1"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Metadata(tc.kv...); got != tc.want {
				t.Errorf("Metadata = %q, want %q", got, tc.want)
			}
		})
	}
}
