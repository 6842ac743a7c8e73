package domain

import "time"

// Session is a server-side login session. ID is the raw identifier carried in the cookie token;
// stores persist only its hash.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session's absolute lifetime has ended at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
