package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/tm65023/Story/internal/devotp"
	"github.com/tm65023/Story/internal/otp/domain"
)

// LogNotifier is the sandbox channel used outside production when no SMTP relay is configured.
// It logs the code instead of sending it.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendCode(ctx context.Context, to, code string, purpose domain.Purpose, ttl time.Duration) error {
	if !ValidRecipient(to) {
		return ErrInvalidRecipient
	}
	n.logger.Warn("sandbox email delivery; code not sent",
		"to", to, "subject", Subject(purpose), "code", code, "expires_in", ttl.String())
	return nil
}

// RecordingNotifier records every successfully delivered code in a dev OTP store.
type RecordingNotifier struct {
	next  Notifier
	store devotp.Store
	now   func() time.Time
}

// NewRecordingNotifier wraps next so that delivered codes are also kept in store.
func NewRecordingNotifier(next Notifier, store devotp.Store) *RecordingNotifier {
	return &RecordingNotifier{next: next, store: store, now: time.Now}
}

func (n *RecordingNotifier) SendCode(ctx context.Context, to, code string, purpose domain.Purpose, ttl time.Duration) error {
	if err := n.next.SendCode(ctx, to, code, purpose, ttl); err != nil {
		return err
	}
	n.store.Put(ctx, to, purpose, code, n.now().UTC().Add(ttl))
	return nil
}
