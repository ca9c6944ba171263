package domain

import (
	"time"

	walletdomain "github.com/soyaya/boardling-sub008/internal/wallet/domain"
)

// AuditEntry records one privacy-mode change. Entries are appended and never updated or deleted.
type AuditEntry struct {
	ID           string                   `json:"id"`
	WalletID     string                   `json:"wallet_id"`
	PreviousMode walletdomain.PrivacyMode `json:"previous_mode"`
	NewMode      walletdomain.PrivacyMode `json:"new_mode"`
	ActorID      string                   `json:"actor_id"`
	CreatedAt    time.Time                `json:"created_at"`
}

// DataLevel is the form in which a requester may see a wallet's analytics.
type DataLevel string

const (
	DataLevelFull       DataLevel = "full"
	DataLevelAnonymized DataLevel = "anonymized"
	DataLevelDenied     DataLevel = "denied"
)

// AccessDecision is the outcome of an access check for one wallet and requester.
type AccessDecision struct {
	Allowed         bool      `json:"allowed"`
	Reason          string    `json:"reason"`
	RequiresPayment bool      `json:"requires_payment"`
	DataLevel       DataLevel `json:"data_level"`
}

// Denied returns a fail-closed decision with the given reason.
func Denied(reason string) AccessDecision {
	return AccessDecision{Allowed: false, Reason: reason, DataLevel: DataLevelDenied}
}

// TransitionResult reports whether a privacy-mode transition may proceed and what it needs.
type TransitionResult struct {
	Valid         bool   `json:"valid"`
	RequiresSetup bool   `json:"requires_setup"`
	Reason        string `json:"reason,omitempty"`
}

// AccessGrant records a settled payment that lets one requester read a monetizable wallet.
type AccessGrant struct {
	ID          string    `json:"id"`
	WalletID    string    `json:"wallet_id"`
	RequesterID string    `json:"requester_id"`
	PaymentRef  string    `json:"payment_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModeChange is one wallet's pending mode update together with its audit entry.
// Storage applies the update and appends the entry atomically.
type ModeChange struct {
	WalletID string
	Mode     walletdomain.PrivacyMode
	Audit    *AuditEntry
}
