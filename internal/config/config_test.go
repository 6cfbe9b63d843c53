package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.UserSandboxLimit != 3 {
		t.Fatalf("expected default sandbox limit 3, got %d", cfg.Auth.UserSandboxLimit)
	}
}

func TestLoadReadsTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandboxd.toml")
	body := "[server]\nhost = \"127.0.0.1\"\nport = 9000\n\n[auth]\nrequire_auth = false\nuser_sandbox_limit = 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Fatalf("expected TOML values applied, got %+v", cfg.Server)
	}
	if cfg.Auth.RequireAuth {
		t.Fatalf("expected require_auth=false to be honored")
	}
	if cfg.Auth.UserSandboxLimit != 5 {
		t.Fatalf("expected user_sandbox_limit=5, got %d", cfg.Auth.UserSandboxLimit)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("APP_HOST", "0.0.0.0")
	t.Setenv("APP_PORT", "9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9999 {
		t.Fatalf("expected env overrides applied, got %+v", cfg.Server)
	}
}

func TestLoadClampsNonPositiveSandboxLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandboxd.toml")
	if err := os.WriteFile(path, []byte("[auth]\nuser_sandbox_limit = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.UserSandboxLimit != 3 {
		t.Fatalf("expected clamp to default 3, got %d", cfg.Auth.UserSandboxLimit)
	}
}
