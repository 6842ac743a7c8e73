package domain

import "time"

// Auth event types.
const (
	EventCodeIssued         = "auth.code_issued"
	EventDeliveryFailed     = "auth.delivery_failed"
	EventEnrollmentRollback = "auth.enrollment_rolled_back"
	EventVerifySucceeded    = "auth.verify_succeeded"
	EventVerifyFailed       = "auth.verify_failed"
	EventLogout             = "auth.logout"
)

// EventHTTPRequest is emitted by the HTTP middleware once per request.
const EventHTTPRequest = "http.request"

// Event is an auth telemetry event. UserID and SessionID are empty when not known.
type Event struct {
	Type      string            `json:"event_type"`
	Source    string            `json:"source"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
