package authority

import (
	"errors"
	"testing"
)

func TestNewRequiresAdmin(t *testing.T) {
	if _, err := New("   "); !errors.Is(err, ErrEmptyAdmin) {
		t.Fatalf("expected empty admin error, got %v", err)
	}

	auth, err := New("addr-admin")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	if !auth.Has("addr-admin", CapabilityAdmin) {
		t.Fatalf("expected admin capability seeded at construction")
	}
	if auth.Has("addr-admin", CapabilityNotary) {
		t.Fatalf("admin should not hold notary capability by default")
	}
}

func TestGrantRequiresAdminCapability(t *testing.T) {
	auth, err := New("addr-admin")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	if err := auth.Grant("addr-mallory", CapabilityNotary, "addr-notary"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized grant error, got %v", err)
	}
	if auth.Has("addr-notary", CapabilityNotary) {
		t.Fatalf("failed grant must leave state unchanged")
	}

	if err := auth.Grant("addr-admin", CapabilityNotary, "addr-notary"); err != nil {
		t.Fatalf("grant notary: %v", err)
	}
	if !auth.Has("addr-notary", CapabilityNotary) {
		t.Fatalf("expected notary capability granted")
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	auth, err := New("addr-admin")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	for range 3 {
		if err := auth.Grant("addr-admin", CapabilityGovernment, "addr-gov"); err != nil {
			t.Fatalf("grant government: %v", err)
		}
	}
	if !auth.Has("addr-gov", CapabilityGovernment) {
		t.Fatalf("expected government capability granted")
	}
}

func TestGrantAdminExtendsGranters(t *testing.T) {
	auth, err := New("addr-admin")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	if err := auth.Grant("addr-admin", CapabilityAdmin, "addr-second"); err != nil {
		t.Fatalf("grant admin: %v", err)
	}
	if err := auth.Grant("addr-second", CapabilityNotary, "addr-notary"); err != nil {
		t.Fatalf("grant by second admin: %v", err)
	}
	if !auth.Has("addr-notary", CapabilityNotary) {
		t.Fatalf("expected grant by second admin to apply")
	}
}

func TestGrantValidatesArguments(t *testing.T) {
	auth, err := New("addr-admin")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	if err := auth.Grant("addr-admin", CapabilityNotary, "  "); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected empty identity error, got %v", err)
	}
	if err := auth.Grant("addr-admin", Capability("MAYOR"), "addr-x"); err == nil {
		t.Fatalf("expected unknown capability error")
	}
}

func TestHasUnknownIdentity(t *testing.T) {
	auth, err := New("addr-admin")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	if auth.Has("", CapabilityAdmin) {
		t.Fatalf("empty identity must never hold a capability")
	}
	if auth.Has("addr-unknown", CapabilityGovernment) {
		t.Fatalf("unknown identity must not hold capabilities")
	}
}

func TestCapabilityFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Capability
	}{
		{"notary", CapabilityNotary},
		{" GOVERNMENT ", CapabilityGovernment},
		{"Admin", CapabilityAdmin},
	}
	for _, tt := range tests {
		got, err := CapabilityFromLabel(tt.label)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.label, err)
		}
		if got != tt.want {
			t.Fatalf("expected %s, got %s", tt.want, got)
		}
	}
	if _, err := CapabilityFromLabel("mayor"); err == nil {
		t.Fatalf("expected error for unknown capability label")
	}
}
