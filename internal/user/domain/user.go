package domain

import (
	"errors"
	"time"
)

// User is a project owner. Requesters that only read shared wallets need no User row.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
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
