package domain

import "time"

// Event types emitted by the service.
const (
	EventPrivacyModeChanged = "privacy_mode_changed"
	EventPaidAccessGranted  = "paid_access_granted"
	EventEntitlementChanged = "entitlement_changed"
	EventPaymentInitiated   = "payment_initiated"
	EventPaymentSettled     = "payment_settled"
)

// Event is a best-effort audit/telemetry event. WalletID, UserID and ActorID are empty when not applicable.
type Event struct {
	Type      string            `json:"event_type"`
	Source    string            `json:"source"`
	WalletID  string            `json:"wallet_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	ActorID   string            `json:"actor_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Key returns the partition key for the event: the wallet when set, otherwise the user.
func (e *Event) Key() string {
	if e.WalletID != "" {
		return e.WalletID
	}
	return e.UserID
}
