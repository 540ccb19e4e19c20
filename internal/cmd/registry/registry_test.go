package registry

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path by default, got %q", cfg.DBPath)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DEEDFLOW_HTTP_ADDR", ":9000")
	t.Setenv("DEEDFLOW_ADMIN_ADDRESS", "addr-env-admin")
	t.Setenv("DEEDFLOW_NOTARY_ADDRESSES", "addr-n1,addr-n2")

	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", ":7000", "-db", "/tmp/registry.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("expected flag to override env, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "/tmp/registry.db" {
		t.Fatalf("expected db flag applied, got %q", cfg.DBPath)
	}
	if cfg.Admin != "addr-env-admin" {
		t.Fatalf("expected env admin, got %q", cfg.Admin)
	}
	if len(cfg.Notaries) != 2 || cfg.Notaries[0] != "addr-n1" || cfg.Notaries[1] != "addr-n2" {
		t.Fatalf("expected notary list parsed, got %v", cfg.Notaries)
	}
}

func TestParseConfigRejectsUnknownFlags(t *testing.T) {
	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-no-such-flag"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}
