// Package notify delivers one-time codes to users by email.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/tm65023/Story/internal/otp/domain"
)

// ErrInvalidRecipient is returned for empty or header-unsafe recipient addresses.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Notifier sends a code to an address. Implementations return an error when delivery was not accepted.
type Notifier interface {
	SendCode(ctx context.Context, to, code string, purpose domain.Purpose, ttl time.Duration) error
}
