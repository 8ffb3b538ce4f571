package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IssuerDomain = "ca.example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
issuer-domain: ca.example.com
pfx-passphrase: s3cret
bootstrap-path: /var/lib/qcertd/bootstrap
header-names:
  forwarded-path-header-name: X-My-Forwarded-Path
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.IssuerDomain != "ca.example.com" {
		t.Errorf("IssuerDomain = %q", cfg.IssuerDomain)
	}
	if cfg.ListenAddr != ":8443" {
		t.Errorf("expected ListenAddr to keep its default, got %q", cfg.ListenAddr)
	}
	if !cfg.RequestValidation || !cfg.ResponseSigning {
		t.Error("expected RequestValidation and ResponseSigning to keep their defaults")
	}
	if cfg.HeaderNames.ForwardedPath != "X-My-Forwarded-Path" {
		t.Errorf("ForwardedPath = %q", cfg.HeaderNames.ForwardedPath)
	}
	if cfg.HeaderNames.ResponseID != defaultHeaderNames().ResponseID {
		t.Errorf("expected unset header name to fall back to its default, got %q", cfg.HeaderNames.ResponseID)
	}
}

func TestLoadConfig_MissingIssuerDomain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("listen-addr: ':9000'\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error when issuer-domain is missing")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
