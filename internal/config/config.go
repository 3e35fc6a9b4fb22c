package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "md-tools"

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Edit        EditConfig        `mapstructure:"edit"`
	Format      FormatConfig      `mapstructure:"format"`
	Tools       ToolsConfig       `mapstructure:"tools"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Serve       ServeConfig       `mapstructure:"serve"`
}

// LogConfig configures the stderr logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type EditConfig struct {
	EnsureTrailingNewline bool          `mapstructure:"ensure_trailing_newline"` // Append a final newline to changed documents
	RegexTimeout          time.Duration `mapstructure:"regex_timeout"`           // Upper bound for one regex search
	IncludeDiff           bool          `mapstructure:"include_diff"`            // Attach a diff to committed results
}

// FormatConfig selects the formatter run by apply calls that ask for one.
// With no command the built-in normalizer is used.
type FormatConfig struct {
	Command string        `mapstructure:"command"` // e.g. prettier
	Args    []string      `mapstructure:"args"`    // e.g. ["--parser", "markdown"]
	Timeout time.Duration `mapstructure:"timeout"`
}

// ToolsConfig mirrors tools.ToolConfig; see tools.NewToolConfigFromFields.
type ToolsConfig struct {
	Enabled      []string `mapstructure:"enabled"`
	ReadDirs     []string `mapstructure:"read_dirs"`
	WriteDirs    []string `mapstructure:"write_dirs"`
	Protected    []string `mapstructure:"protected"`
	MaxFileBytes int64    `mapstructure:"max_file_bytes"`
}

// DiagnosticsConfig configures diagnostic data collection
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled"` // Dump failed transactions
	Dir     string `mapstructure:"dir"`     // Override default directory
}

type ServeConfig struct {
	HTTPAddr string `mapstructure:"http_addr"` // Serve streamable HTTP instead of stdio when set
}

// Load reads config.yaml from the config directory or the working directory.
// A missing file is not an error. MD_TOOLS_* environment variables override
// file values, e.g. MD_TOOLS_EDIT_REGEX_TIMEOUT=5s.
func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("MD_TOOLS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Diagnostics.Dir = expandHome(cfg.Diagnostics.Dir)
	for i, dir := range cfg.Tools.ReadDirs {
		cfg.Tools.ReadDirs[i] = expandHome(dir)
	}
	for i, dir := range cfg.Tools.WriteDirs {
		cfg.Tools.WriteDirs[i] = expandHome(dir)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("edit.ensure_trailing_newline", true)
	viper.SetDefault("edit.regex_timeout", 2*time.Second)
	viper.SetDefault("edit.include_diff", false)
	viper.SetDefault("format.command", "")
	viper.SetDefault("format.args", []string{})
	viper.SetDefault("format.timeout", 10*time.Second)
	viper.SetDefault("tools.enabled", []string{})
	viper.SetDefault("tools.read_dirs", []string{})
	viper.SetDefault("tools.write_dirs", []string{})
	viper.SetDefault("tools.protected", []string{})
	viper.SetDefault("tools.max_file_bytes", 4*1024*1024)
	viper.SetDefault("diagnostics.enabled", false)
	viper.SetDefault("diagnostics.dir", "")
	viper.SetDefault("serve.http_addr", "")
}

// LogLevel parses Log.Level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DiagnosticsDir returns where failed transactions are dumped.
func (c *Config) DiagnosticsDir() string {
	if c.Diagnostics.Dir != "" {
		return c.Diagnostics.Dir
	}
	return GetDiagnosticsDir()
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// GetConfigDir returns the XDG config directory for md-tools.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetDiagnosticsDir returns the XDG data directory for md-tools diagnostics.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDiagnosticsDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName, "diagnostics")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appName+"-diagnostics") // fallback
	}
	return filepath.Join(homeDir, ".local", "share", appName, "diagnostics")
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes a commented config file reflecting cfg to disk.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`log:
  level: %s
  format: %s

edit:
  ensure_trailing_newline: %t
  regex_timeout: %s
  include_diff: %t

format:
  # External formatter used when an apply asks for formatting.
  # Leave empty to use the built-in normalizer.
  command: %q
  # args: ["--parser", "markdown"]
  timeout: %s

tools:
  # enabled: [md_stat, md_validate, md_apply, md_read_section, md_find]
  # read_dirs: [~/notes]
  # write_dirs: [~/notes]
  # protected: ["CHANGELOG.md", "vendor/**"]
  max_file_bytes: %d

diagnostics:
  enabled: %t
  # dir: ~/.local/share/md-tools/diagnostics

serve:
  # e.g. 127.0.0.1:8931 to serve streamable HTTP instead of stdio
  http_addr: %q
`, cfg.Log.Level, cfg.Log.Format,
		cfg.Edit.EnsureTrailingNewline, cfg.Edit.RegexTimeout, cfg.Edit.IncludeDiff,
		cfg.Format.Command, cfg.Format.Timeout,
		cfg.Tools.MaxFileBytes,
		cfg.Diagnostics.Enabled,
		cfg.Serve.HTTPAddr)

	return os.WriteFile(path, []byte(content), 0600)
}
