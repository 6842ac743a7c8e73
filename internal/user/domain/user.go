package domain

import (
	"errors"
	"time"
)

// User is an account identified by its email address.
// IsVerified becomes true after the first successful enrollment verification and never reverts.
type User struct {
	ID         string
	Email      string
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	return nil
}
