// Package domain holds the audit trail record.
package domain

import "time"

// AuditLog is one auth event: a code request, a verification attempt or a logout.
// UserID is empty when the actor could not be identified, such as a verify for an unknown email.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
