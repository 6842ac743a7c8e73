package domain

import "time"

// Purpose distinguishes codes issued at signup from codes issued at login.
type Purpose string

const (
	PurposeEnrollment       Purpose = "enrollment"
	PurposeReauthentication Purpose = "reauthentication"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeEnrollment || p == PurposeReauthentication
}

// Code is a pending one-time code (stored in one_time_codes table).
// Only the hash of the code is persisted.
type Code struct {
	ID        string
	UserID    string
	CodeHash  string
	Purpose   Purpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code is no longer usable at now.
func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
