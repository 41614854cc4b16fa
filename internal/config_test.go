package internal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = AuthModeToken
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_DerivesPaths(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	dir := cfg.Storage.DataDir
	want := map[string]string{
		"default notes dir": filepath.Join(dir, "notes"),
		"settings file":     filepath.Join(dir, "settings.yaml"),
		"trash ledger":      filepath.Join(dir, "trash.db"),
		"credentials dir":   filepath.Join(dir, "credentials"),
	}
	got := map[string]string{
		"default notes dir": cfg.Storage.DefaultNotesDir,
		"settings file":     cfg.Storage.SettingsFile,
		"trash ledger":      cfg.Trash.LedgerPath,
		"credentials dir":   cfg.AI.CredentialsDir,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s = %q, want %q", k, got[k], w)
		}
	}
}

func TestStorageConfig_ExpandsHome(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := StorageConfig{DataDir: "~/inkwell-data", DefaultNotesDir: "~/Notes"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != filepath.Join(home, "inkwell-data") {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.DefaultNotesDir != filepath.Join(home, "Notes") {
		t.Errorf("notes dir = %q", cfg.DefaultNotesDir)
	}
}

func TestStorageConfig_RequiresDataDir(t *testing.T) {
	cfg := StorageConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty data dir should fail")
	}
}

func TestAIConfig_Bounds(t *testing.T) {
	cfg := AIConfig{Temperature: 3, CredentialsDir: t.TempDir()}
	if err := cfg.Validate(); err == nil {
		t.Error("temperature above 2 should fail")
	}
	cfg = AIConfig{Timeout: -time.Second, CredentialsDir: t.TempDir()}
	if err := cfg.Validate(); err == nil {
		t.Error("negative timeout should fail")
	}
	cfg = AIConfig{Model: "gpt-4o", MaxTokens: 64, CredentialsDir: t.TempDir()}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if s := cfg.Settings(); s.Model != "gpt-4o" || s.MaxTokens != 64 {
		t.Errorf("settings = %+v", s)
	}
}
