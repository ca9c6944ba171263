package domain

import (
	"errors"
	"time"
)

// Project groups the wallets a user tracks. The project's user owns every wallet in it.
type Project struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Validate validates the project for persistence. Returns an error describing the first validation failure.
func (p *Project) Validate() error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
