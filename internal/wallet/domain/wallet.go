package domain

import (
	"errors"
	"time"
)

// Wallet is a tracked Zcash wallet belonging to a project. OwnerID is the user that owns the project.
type Wallet struct {
	ID          string
	ProjectID   string
	OwnerID     string
	Address     string
	AddressKind AddressKind
	PrivacyMode PrivacyMode
	IsActive    bool
	CreatedAt   time.Time
}

type AddressKind string

const (
	AddressKindTransparent AddressKind = "transparent"
	AddressKindShielded    AddressKind = "shielded"
	AddressKindUnified     AddressKind = "unified"
)

// PrivacyMode is the visibility tier of a wallet's analytics.
type PrivacyMode string

const (
	PrivacyModePrivate     PrivacyMode = "private"
	PrivacyModePublic      PrivacyMode = "public"
	PrivacyModeMonetizable PrivacyMode = "monetizable"
)

// PrivacyModes lists every valid mode in a stable order.
var PrivacyModes = []PrivacyMode{PrivacyModePrivate, PrivacyModePublic, PrivacyModeMonetizable}

// Valid reports whether m is one of the three known modes.
func (m PrivacyMode) Valid() bool {
	switch m {
	case PrivacyModePrivate, PrivacyModePublic, PrivacyModeMonetizable:
		return true
	}
	return false
}

// Valid reports whether k is a known address kind.
func (k AddressKind) Valid() bool {
	switch k {
	case AddressKindTransparent, AddressKindShielded, AddressKindUnified:
		return true
	}
	return false
}

// IsOwnedBy reports whether userID owns the wallet through its project.
func (w *Wallet) IsOwnedBy(userID string) bool {
	return w != nil && userID != "" && w.OwnerID == userID
}

// Validate validates the wallet for persistence. New wallets default to private.
func (w *Wallet) Validate() error {
	if w.ProjectID == "" {
		return errors.New("project_id is required")
	}
	if w.Address == "" {
		return errors.New("address is required")
	}
	if !w.AddressKind.Valid() {
		return errors.New("address_kind must be transparent, shielded or unified")
	}
	if w.PrivacyMode == "" {
		w.PrivacyMode = PrivacyModePrivate
	}
	if !w.PrivacyMode.Valid() {
		return errors.New("privacy_mode must be private, public or monetizable")
	}
	return nil
}
