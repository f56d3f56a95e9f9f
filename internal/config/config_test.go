// Package config tests validate config loading behavior.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "scangate.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

// TestLoadAppliesDefaults confirms defaults are applied on load.
func TestLoadAppliesDefaults(t *testing.T) {
	p := write(t, "remote:\n  endpoint: https://files.example.com\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.FTP.Port != 2121 {
		t.Fatalf("expected default ftp.port 2121, got %d", c.FTP.Port)
	}
	if c.Session.Max != 10 {
		t.Fatalf("expected default session.max 10, got %d", c.Session.Max)
	}
	if c.Session.IdleTimeout.Std() != 5*time.Minute {
		t.Fatalf("expected default idle_timeout 5m, got %v", c.Session.IdleTimeout.Std())
	}
	if c.Upload.PacingDelay.Std() != 2*time.Second {
		t.Fatalf("expected default pacing_delay 2s, got %v", c.Upload.PacingDelay.Std())
	}
	if c.Remote.Backend != "http" {
		t.Fatalf("expected default remote.backend http, got %q", c.Remote.Backend)
	}
}

// TestLoadParsesDurations checks duration strings round-trip into time.Duration.
func TestLoadParsesDurations(t *testing.T) {
	p := write(t, `
remote:
  endpoint: https://files.example.com
session:
  idle_timeout: 90s
upload:
  pacing_delay: 250ms
  debounce_period: 1s
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Session.IdleTimeout.Std() != 90*time.Second {
		t.Fatalf("idle_timeout = %v", c.Session.IdleTimeout.Std())
	}
	if c.Upload.PacingDelay.Std() != 250*time.Millisecond {
		t.Fatalf("pacing_delay = %v", c.Upload.PacingDelay.Std())
	}
}

// TestLoadRejectsMissingEndpoint requires an endpoint for the http backend.
func TestLoadRejectsMissingEndpoint(t *testing.T) {
	p := write(t, "log:\n  level: info\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for missing remote.endpoint")
	}
}

// TestLoadRejectsUnknownBackend rejects backends the factory does not know.
func TestLoadRejectsUnknownBackend(t *testing.T) {
	p := write(t, "remote:\n  backend: carrier-pigeon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

// TestLoadEnvOverridesToken lets the environment supply the remote token.
func TestLoadEnvOverridesToken(t *testing.T) {
	t.Setenv("SCANGATE_REMOTE_TOKEN", "tok-from-env")
	p := write(t, "remote:\n  endpoint: https://files.example.com\n  token: tok-from-file\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Remote.Token != "tok-from-env" {
		t.Fatalf("expected env token to win, got %q", c.Remote.Token)
	}
}
