package tools

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultMaxFileBytes caps the size of documents the tools will load.
const DefaultMaxFileBytes int64 = 4 * 1024 * 1024

// ToolConfig holds configuration for the local tool system.
type ToolConfig struct {
	Enabled      []string `mapstructure:"enabled"`        // Enabled tool spec names
	ReadDirs     []string `mapstructure:"read_dirs"`      // Directories for read operations
	WriteDirs    []string `mapstructure:"write_dirs"`     // Directories for write operations
	Protected    []string `mapstructure:"protected"`      // Glob patterns md_apply refuses to modify
	MaxFileBytes int64    `mapstructure:"max_file_bytes"` // Largest document accepted
}

// DefaultToolConfig returns sensible defaults for tool configuration.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		Enabled:      AllToolNames(),
		ReadDirs:     []string{},
		WriteDirs:    []string{},
		Protected:    []string{},
		MaxFileBytes: DefaultMaxFileBytes,
	}
}

// Merge combines this config with another, with other taking precedence for non-empty values.
func (c ToolConfig) Merge(other ToolConfig) ToolConfig {
	result := c

	if len(other.Enabled) > 0 {
		result.Enabled = other.Enabled
	}
	if len(other.ReadDirs) > 0 {
		result.ReadDirs = append(append([]string{}, result.ReadDirs...), other.ReadDirs...)
	}
	if len(other.WriteDirs) > 0 {
		result.WriteDirs = append(append([]string{}, result.WriteDirs...), other.WriteDirs...)
	}
	if len(other.Protected) > 0 {
		result.Protected = append(append([]string{}, result.Protected...), other.Protected...)
	}
	if other.MaxFileBytes > 0 {
		result.MaxFileBytes = other.MaxFileBytes
	}

	return result
}

// Validate checks the configuration for errors.
func (c *ToolConfig) Validate() []error {
	var errs []error

	for _, name := range c.Enabled {
		if !ValidToolName(name) {
			errs = append(errs, fmt.Errorf("unknown tool: %s", name))
		}
	}

	for _, pattern := range c.Protected {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("invalid protected pattern %q: %w", pattern, err))
		}
	}

	if c.MaxFileBytes < 0 {
		errs = append(errs, fmt.Errorf("max_file_bytes must not be negative: %d", c.MaxFileBytes))
	}

	// Warn for nonexistent directories (may be mounted later)
	for _, dir := range c.ReadDirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Warn("read_dir does not exist", "dir", dir)
		}
	}
	for _, dir := range c.WriteDirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Warn("write_dir does not exist", "dir", dir)
		}
	}

	return errs
}

// IsToolEnabled checks if a tool is enabled.
func (c *ToolConfig) IsToolEnabled(specName string) bool {
	for _, name := range c.Enabled {
		if name == specName {
			return true
		}
	}
	return false
}

// ParseToolsFlag parses a comma-separated list of tool names.
// Special values: "all" or "*" expand to all available tools.
func ParseToolsFlag(value string) []string {
	if value == "" {
		return nil
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "all" || trimmed == "*" {
		return AllToolNames()
	}
	parts := strings.Split(value, ",")
	var tools []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tools = append(tools, p)
		}
	}
	return tools
}

// BuildPolicy creates the PathPolicy described by this config.
func (c *ToolConfig) BuildPolicy() (*PathPolicy, error) {
	policy := NewPathPolicy()
	policy.MaxFileBytes = c.MaxFileBytes

	for _, dir := range c.ReadDirs {
		if err := policy.AddReadDir(dir); err != nil {
			// Non-fatal: directory may not exist yet
			slog.Warn("failed to add read dir", "dir", dir, "error", err)
		}
	}

	for _, dir := range c.WriteDirs {
		if err := policy.AddWriteDir(dir); err != nil {
			slog.Warn("failed to add write dir", "dir", dir, "error", err)
		}
	}

	for _, pattern := range c.Protected {
		if err := policy.AddProtected(pattern); err != nil {
			return nil, err
		}
	}

	return policy, nil
}

// NewToolConfigFromFields creates a ToolConfig from individual field values.
// This allows callers from the config package to create ToolConfigs without circular imports.
func NewToolConfigFromFields(enabled, readDirs, writeDirs, protected []string, maxFileBytes int64) ToolConfig {
	cfg := DefaultToolConfig()
	if len(enabled) > 0 {
		cfg.Enabled = enabled
	}
	return cfg.Merge(ToolConfig{
		ReadDirs:     readDirs,
		WriteDirs:    writeDirs,
		Protected:    protected,
		MaxFileBytes: maxFileBytes,
	})
}
