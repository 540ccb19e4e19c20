package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deedflow/deedflow/internal/registry/domain/authority"
	"github.com/deedflow/deedflow/internal/registry/domain/property"
)

const docHash = "8f434346648f6b96df89dda901c5176b10a6d83961dd3c1ac88b59b2dc327aa4"

func TestNewRuntimeGrantsCapabilities(t *testing.T) {
	runtime, err := NewRuntime(Config{
		Admin:       "addr-admin",
		Notaries:    []string{"addr-n1", "addr-n2"},
		Governments: []string{"addr-gov"},
	})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()

	if !runtime.Authority.Has("addr-admin", authority.CapabilityAdmin) {
		t.Fatalf("expected admin capability seeded")
	}
	for _, notary := range []string{"addr-n1", "addr-n2"} {
		if !runtime.Authority.Has(notary, authority.CapabilityNotary) {
			t.Fatalf("expected notary capability for %s", notary)
		}
	}
	if !runtime.Authority.Has("addr-gov", authority.CapabilityGovernment) {
		t.Fatalf("expected government capability granted")
	}

	p, err := runtime.Engine.Register(context.Background(), "addr-seller", property.RegisterInput{
		DocHash: docHash,
		Buyer:   "addr-buyer",
		Notary:  "addr-n1",
	})
	if err != nil {
		t.Fatalf("register through runtime: %v", err)
	}
	if p.ID != 1 {
		t.Fatalf("expected id 1, got %d", p.ID)
	}
}

func TestNewRuntimeRequiresAdmin(t *testing.T) {
	if _, err := NewRuntime(Config{}); err == nil {
		t.Fatalf("expected error for missing admin identity")
	}
}

func TestNewRuntimeSQLiteBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	runtime, err := NewRuntime(Config{DBPath: path, Admin: "addr-admin"})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if err := runtime.Close(); err != nil {
		t.Fatalf("close runtime: %v", err)
	}
}
