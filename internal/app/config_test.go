package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeoutSec != 60 {
		t.Fatalf("RequestTimeoutSec = %d", cfg.RequestTimeoutSec)
	}
}

func TestLoadConfigReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "api_base_url: https://api.example.com\naccess_token: tok\nuser_id: u42\nrequest_timeout_sec: 15\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" || cfg.AccessToken != "tok" ||
		cfg.UserID != "u42" || cfg.RequestTimeoutSec != 15 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("api_base_url: http://from-file\nuser_id: file-user\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DOCDASH_API_URL", "http://from-env")
	t.Setenv("DOCDASH_TOKEN", "env-token")
	t.Setenv("DOCDASH_USER_ID", "env-user")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://from-env" {
		t.Fatalf("env should win over file: %q", cfg.APIBaseURL)
	}
	if cfg.AccessToken != "env-token" || cfg.UserID != "env-user" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("api_base_url: [broken"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	want := Config{APIBaseURL: "http://x", AccessToken: "t", UserID: "u", RequestTimeoutSec: 30}
	if err := SaveConfig(want, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("config perms = %v, want 0600", info.Mode().Perm())
	}
}
