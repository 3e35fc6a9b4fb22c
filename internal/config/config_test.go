package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func loadIn(t *testing.T, yaml string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	if yaml != "" {
		dir := filepath.Join(home, "md-tools")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadIn(t, "")
	if !cfg.Edit.EnsureTrailingNewline {
		t.Error("ensure_trailing_newline should default to true")
	}
	if cfg.Edit.RegexTimeout != 2*time.Second {
		t.Errorf("regex_timeout = %v, want 2s", cfg.Edit.RegexTimeout)
	}
	if cfg.Tools.MaxFileBytes != 4*1024*1024 {
		t.Errorf("max_file_bytes = %d", cfg.Tools.MaxFileBytes)
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("log level = %v, want info", cfg.LogLevel())
	}
}

func TestLoadFile(t *testing.T) {
	cfg := loadIn(t, `
log:
  level: debug
edit:
  regex_timeout: 500ms
format:
  command: prettier
  args: ["--parser", "markdown"]
tools:
  enabled: [md_stat, md_apply]
  protected: ["CHANGELOG.md"]
diagnostics:
  enabled: true
  dir: /tmp/md-diag
`)
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", cfg.LogLevel())
	}
	if cfg.Edit.RegexTimeout != 500*time.Millisecond {
		t.Errorf("regex_timeout = %v", cfg.Edit.RegexTimeout)
	}
	if cfg.Format.Command != "prettier" || len(cfg.Format.Args) != 2 {
		t.Errorf("format = %+v", cfg.Format)
	}
	if len(cfg.Tools.Enabled) != 2 || cfg.Tools.Protected[0] != "CHANGELOG.md" {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if cfg.DiagnosticsDir() != "/tmp/md-diag" {
		t.Errorf("DiagnosticsDir() = %q", cfg.DiagnosticsDir())
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MD_TOOLS_EDIT_REGEX_TIMEOUT", "5s")
	cfg := loadIn(t, "edit:\n  regex_timeout: 1s\n")
	if cfg.Edit.RegexTimeout != 5*time.Second {
		t.Errorf("regex_timeout = %v, want env override 5s", cfg.Edit.RegexTimeout)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := loadIn(t, "")
	cfg.Log.Level = "warn"
	cfg.Diagnostics.Enabled = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !Exists() {
		t.Fatal("Exists() = false after Save")
	}

	viper.Reset()
	again, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if again.Log.Level != "warn" || !again.Diagnostics.Enabled {
		t.Errorf("reloaded = %+v", again)
	}
}

func TestGetDiagnosticsDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := GetDiagnosticsDir(); got != filepath.Join("/data", "md-tools", "diagnostics") {
		t.Errorf("GetDiagnosticsDir() = %q", got)
	}
}
