// Package service issues and verifies the one-time codes that enroll and sign in Story users.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tm65023/Story/internal/audit"
	"github.com/tm65023/Story/internal/notify"
	"github.com/tm65023/Story/internal/otp"
	otpdomain "github.com/tm65023/Story/internal/otp/domain"
	otprepo "github.com/tm65023/Story/internal/otp/repository"
	"github.com/tm65023/Story/internal/session"
	sessiondomain "github.com/tm65023/Story/internal/session/domain"
	"github.com/tm65023/Story/internal/telemetry"
	telemetrydomain "github.com/tm65023/Story/internal/telemetry/domain"
	userdomain "github.com/tm65023/Story/internal/user/domain"
	userrepo "github.com/tm65023/Story/internal/user/repository"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrMissingEmail         = errors.New("email is required")
	ErrInvalidEmailFormat   = errors.New("invalid email format")
	ErrInvalidCodeFormat    = errors.New("code must be 6 characters")
	ErrAlreadyRegistered    = errors.New("email already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotVerified          = errors.New("email not verified")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrDeliveryFailure      = errors.New("failed to send verification code")
)

// DefaultCodeTTL is how long an issued code stays valid.
const DefaultCodeTTL = 10 * time.Minute

const eventSource = "auth_service"

// Store is the credential store. WithTx runs fn with repositories bound to one transaction;
// nothing fn writes is visible to other callers until it returns nil.
type Store interface {
	Users() userrepo.Repository
	WithTx(ctx context.Context, fn func(ctx context.Context, users userrepo.Repository, codes otprepo.Repository) error) error
}

// SessionBinder is the minimal session binding needed by the auth service.
type SessionBinder interface {
	Establish(ctx context.Context, userID string) (*session.Handle, error)
	Resolve(ctx context.Context, token string) (*sessiondomain.Session, error)
	Destroy(ctx context.Context, token string) error
}

// Metrics receives auth counters. *otel.AuthMetrics implements it.
type Metrics interface {
	CodeIssued(ctx context.Context, purpose string)
	DeliveryFailed(ctx context.Context, purpose string)
	Verification(ctx context.Context, result string)
	SessionEstablished(ctx context.Context)
}

// VerifyResult is the outcome of a successful VerifyCode.
type VerifyResult struct {
	User    *userdomain.User
	Session *session.Handle
	// Purpose is the purpose of the consumed code.
	Purpose otpdomain.Purpose
}

// AuthService implements passwordless enrollment, reauthentication and code verification.
type AuthService struct {
	store       Store
	sessions    SessionBinder
	notifier    notify.Notifier
	codeTTL     time.Duration
	auditLogger audit.AuditLogger
	emitter     telemetry.EventEmitter
	metrics     Metrics
	logger      *slog.Logger

	now          func() time.Time
	newID        func() string
	generateCode func() (string, error)
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger, emitter and metrics may be nil. codeTTL <= 0 selects DefaultCodeTTL.
func NewAuthService(
	store Store,
	sessions SessionBinder,
	notifier notify.Notifier,
	codeTTL time.Duration,
	auditLogger audit.AuditLogger,
	emitter telemetry.EventEmitter,
	metrics Metrics,
	logger *slog.Logger,
) *AuthService {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:        store,
		sessions:     sessions,
		notifier:     notifier,
		codeTTL:      codeTTL,
		auditLogger:  auditLogger,
		emitter:      emitter,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
		generateCode: otp.GenerateCode,
	}
}

// RequestEnrollment starts (or restarts) registration for email and mails an enrollment code.
// An unverified user with the same email is reused. If delivery fails and the user was created
// by this call, the user and its code are removed again.
func (s *AuthService) RequestEnrollment(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := s.generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	var (
		user    *userdomain.User
		created bool
		codeID  string
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, users userrepo.Repository, codes otprepo.Repository) error {
		existing, err := users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing == nil {
			now := s.now().UTC()
			candidate := &userdomain.User{
				ID:        s.newID(),
				Email:     email,
				CreatedAt: now,
				UpdatedAt: now,
			}
			inserted, err := users.CreateIfAbsent(ctx, candidate)
			if err != nil {
				return err
			}
			if inserted {
				user, created = candidate, true
			} else {
				// Lost a concurrent insert for the same email; continue with the winner's row.
				existing, err = users.GetByEmail(ctx, email)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("user %q vanished after insert conflict", email)
				}
			}
		}
		if existing != nil {
			if existing.IsVerified {
				return ErrAlreadyRegistered
			}
			user = existing
		}
		codeID, err = s.replaceCode(ctx, codes, user.ID, code, otpdomain.PurposeEnrollment)
		return err
	})
	if err != nil {
		return err
	}
	s.codeIssued(ctx, user.ID, otpdomain.PurposeEnrollment, audit.ActionEnrollmentRequested)

	if err := s.deliver(ctx, user.ID, email, code, otpdomain.PurposeEnrollment); err != nil {
		if created {
			s.rollbackEnrollment(ctx, user.ID, codeID)
		}
		return err
	}
	return nil
}

// RequestReauthentication mails a sign-in code to an existing, verified user.
func (s *AuthService) RequestReauthentication(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := s.generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	var user *userdomain.User
	err = s.store.WithTx(ctx, func(ctx context.Context, users userrepo.Repository, codes otprepo.Repository) error {
		u, err := users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrUserNotFound
		}
		if !u.IsVerified {
			return ErrNotVerified
		}
		user = u
		_, err = s.replaceCode(ctx, codes, u.ID, code, otpdomain.PurposeReauthentication)
		return err
	})
	if err != nil {
		return err
	}
	s.codeIssued(ctx, user.ID, otpdomain.PurposeReauthentication, audit.ActionReauthenticationRequested)

	return s.deliver(ctx, user.ID, email, code, otpdomain.PurposeReauthentication)
}

// VerifyCode consumes a pending code for email and, on success, establishes a session.
// Enrollment codes also mark the user verified. A code can be consumed at most once.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (*VerifyResult, error) {
	code = otp.NormalizeCode(code)
	if !otp.ValidFormat(code) {
		s.verifyFailed(ctx, "", "invalid_format")
		return nil, ErrInvalidCodeFormat
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.verifyFailed(ctx, "", "user_not_found")
		return nil, ErrUserNotFound
	}

	var consumed *otpdomain.Code
	err = s.store.WithTx(ctx, func(ctx context.Context, users userrepo.Repository, codes otprepo.Repository) error {
		now := s.now().UTC()
		c, err := codes.Consume(ctx, user.ID, otp.HashCode(code), now)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrInvalidOrExpiredCode
		}
		consumed = c
		if c.Purpose == otpdomain.PurposeEnrollment {
			return users.MarkVerified(ctx, user.ID, now)
		}
		return nil
	})
	if errors.Is(err, ErrInvalidOrExpiredCode) {
		s.verifyFailed(ctx, user.ID, "invalid_or_expired")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if consumed.Purpose == otpdomain.PurposeEnrollment {
		user.IsVerified = true
	}

	handle, err := s.sessions.Establish(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	s.metrics.Verification(ctx, "success")
	s.metrics.SessionEstablished(ctx)
	s.audit(ctx, user.ID, audit.ActionVerifySuccess, audit.Metadata("purpose", string(consumed.Purpose)))
	s.emit(ctx, &telemetrydomain.Event{
		Type:      telemetrydomain.EventVerifySucceeded,
		UserID:    user.ID,
		SessionID: handle.SessionID,
		Attrs:     map[string]string{"purpose": string(consumed.Purpose)},
	})
	return &VerifyResult{User: user, Session: handle, Purpose: consumed.Purpose}, nil
}

// Logout destroys the session behind token. Unknown or malformed tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return err
	}
	if sess != nil {
		s.audit(ctx, sess.UserID, audit.ActionLogout, "")
		s.emit(ctx, &telemetrydomain.Event{Type: telemetrydomain.EventLogout, UserID: sess.UserID, SessionID: sess.ID})
	}
	return nil
}

// CurrentUser returns the user bound to a resolved session.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*userdomain.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// replaceCode drops any pending code of the same purpose and stores the new one, returning its id.
func (s *AuthService) replaceCode(ctx context.Context, codes otprepo.Repository, userID, code string, purpose otpdomain.Purpose) (string, error) {
	if err := codes.DeleteByUserAndPurpose(ctx, userID, purpose); err != nil {
		return "", err
	}
	now := s.now().UTC()
	c := &otpdomain.Code{
		ID:        s.newID(),
		UserID:    userID,
		CodeHash:  otp.HashCode(code),
		Purpose:   purpose,
		ExpiresAt: now.Add(s.codeTTL),
		CreatedAt: now,
	}
	if err := codes.Create(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *AuthService) deliver(ctx context.Context, userID, email, code string, purpose otpdomain.Purpose) error {
	err := s.notifier.SendCode(ctx, email, code, purpose, s.codeTTL)
	if err == nil {
		return nil
	}
	s.logger.Warn("code delivery failed", "user_id", userID, "purpose", purpose, "error", err)
	s.metrics.DeliveryFailed(ctx, string(purpose))
	s.audit(ctx, userID, audit.ActionDeliveryFailed, audit.Metadata("purpose", string(purpose)))
	s.emit(ctx, &telemetrydomain.Event{
		Type:   telemetrydomain.EventDeliveryFailed,
		UserID: userID,
		Attrs:  map[string]string{"purpose": string(purpose)},
	})
	return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
}

// rollbackEnrollment removes a user created by a RequestEnrollment whose email never went out.
// The user is kept when a later request has since reissued its code or it has been verified.
func (s *AuthService) rollbackEnrollment(ctx context.Context, userID, codeID string) {
	var removed bool
	err := s.store.WithTx(ctx, func(ctx context.Context, users userrepo.Repository, _ otprepo.Repository) error {
		var err error
		removed, err = users.DeletePendingEnrollment(ctx, userID, codeID)
		return err
	})
	if err != nil {
		s.logger.Error("enrollment rollback failed", "user_id", userID, "error", err)
		return
	}
	if !removed {
		s.logger.Info("enrollment rollback skipped; user was reissued a code or verified", "user_id", userID)
		return
	}
	s.emit(ctx, &telemetrydomain.Event{Type: telemetrydomain.EventEnrollmentRollback, UserID: userID})
}

func (s *AuthService) codeIssued(ctx context.Context, userID string, purpose otpdomain.Purpose, action string) {
	s.metrics.CodeIssued(ctx, string(purpose))
	s.audit(ctx, userID, action, audit.Metadata("purpose", string(purpose)))
	s.emit(ctx, &telemetrydomain.Event{
		Type:   telemetrydomain.EventCodeIssued,
		UserID: userID,
		Attrs:  map[string]string{"purpose": string(purpose)},
	})
}

func (s *AuthService) verifyFailed(ctx context.Context, userID, reason string) {
	s.metrics.Verification(ctx, reason)
	s.audit(ctx, userID, audit.ActionVerifyFailure, audit.Metadata("reason", reason))
	s.emit(ctx, &telemetrydomain.Event{
		Type:   telemetrydomain.EventVerifyFailed,
		UserID: userID,
		Attrs:  map[string]string{"reason": reason},
	})
}

func (s *AuthService) audit(ctx context.Context, userID, action, metadata string) {
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, userID, action, audit.ResourceAuth, metadata)
	}
}

func (s *AuthService) emit(ctx context.Context, event *telemetrydomain.Event) {
	if s.emitter == nil {
		return
	}
	event.Source = eventSource
	telemetry.EmitAsync(s.emitter, ctx, event)
}

// normalizeEmail trims the address and checks it has a local part and a domain around '@'
// and that the notifier will accept it as a recipient. Case is preserved; addresses are compared exactly.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrMissingEmail
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || !notify.ValidRecipient(email) {
		return "", ErrInvalidEmailFormat
	}
	return email, nil
}

type noopMetrics struct{}

func (noopMetrics) CodeIssued(context.Context, string)     {}
func (noopMetrics) DeliveryFailed(context.Context, string) {}
func (noopMetrics) Verification(context.Context, string)   {}
func (noopMetrics) SessionEstablished(context.Context)     {}
