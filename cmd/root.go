package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/samsaffron/md-tools/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	debugMode  bool
	jsonOutput bool

	// appConfig is loaded once by the root PersistentPreRunE.
	appConfig *config.Config
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Show debug information")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print tool results as JSON (default when stdout is not a terminal)")
}

var rootCmd = &cobra.Command{
	Use:   "md-tools",
	Short: "Structured, hash-guarded edits for Markdown files",
	Long: `md-tools reads Markdown into sections and applies batches of edits as
one transaction. Every write is guarded by the content hash of the file it
was planned against, so concurrent changes are never overwritten.

Examples:
  md-tools stat README.md                      # sections, hash, code blocks
  md-tools section README.md Install           # print one section
  md-tools validate README.md --autofix-preview
  md-tools apply README.md --base-hash <hash> --edits edits.json --dry-run
  md-tools find "docs/**/*.md"

  md-tools serve                               # MCP server over stdio
  md-tools config                              # view configuration`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		level := cfg.LogLevel()
		if debugMode {
			level = slog.LevelDebug
		}
		slog.SetDefault(newLogger(os.Stderr, cfg.Log.Format, level))
		return nil
	},
}

// newLogger builds the stderr logger. Stdout is reserved for tool output.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errToolFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
