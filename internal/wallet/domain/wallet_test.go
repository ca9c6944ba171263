package domain

import "testing"

func TestPrivacyMode_Valid(t *testing.T) {
	for _, m := range PrivacyModes {
		if !m.Valid() {
			t.Errorf("%q should be valid", m)
		}
	}
	for _, m := range []PrivacyMode{"", "secret", "PUBLIC"} {
		if m.Valid() {
			t.Errorf("%q should be invalid", m)
		}
	}
}

func TestWallet_Validate(t *testing.T) {
	w := &Wallet{ProjectID: "p1", Address: "zs1abc", AddressKind: AddressKindShielded}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if w.PrivacyMode != PrivacyModePrivate {
		t.Errorf("PrivacyMode = %q, want private default", w.PrivacyMode)
	}

	testCases := []struct {
		name string
		w    Wallet
	}{
		{"missing project", Wallet{Address: "t1", AddressKind: AddressKindTransparent}},
		{"missing address", Wallet{ProjectID: "p1", AddressKind: AddressKindTransparent}},
		{"bad kind", Wallet{ProjectID: "p1", Address: "t1", AddressKind: "sapling"}},
		{"bad mode", Wallet{ProjectID: "p1", Address: "t1", AddressKind: AddressKindUnified, PrivacyMode: "hidden"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.w.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWallet_IsOwnedBy(t *testing.T) {
	w := &Wallet{ID: "w1", OwnerID: "user-1"}
	if !w.IsOwnedBy("user-1") {
		t.Error("owner should own wallet")
	}
	if w.IsOwnedBy("user-2") {
		t.Error("stranger should not own wallet")
	}
	if w.IsOwnedBy("") {
		t.Error("empty requester should never own a wallet")
	}
	var nilWallet *Wallet
	if nilWallet.IsOwnedBy("user-1") {
		t.Error("nil wallet has no owner")
	}
}
