package cmd

import (
	"log/slog"

	"github.com/samsaffron/md-tools/internal/mcp"
	"github.com/samsaffron/md-tools/internal/signal"
	"github.com/spf13/cobra"
)

var (
	serveFlags ToolFlags
	serveHTTP  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Markdown tools over MCP",
	Long: `Run a Model Context Protocol server exposing md_stat, md_validate,
md_apply, md_read_section and md_find. Speaks stdio by default; with --http
(or serve.http_addr in config) it serves streamable HTTP instead.

Logs go to stderr so they never mix with the stdio protocol stream.

Examples:
  md-tools serve --write-dir ~/notes
  md-tools serve --http 127.0.0.1:8931 --tools md_stat,md_read_section,md_find
  md-tools serve --protect "CHANGELOG.md" --protect "vendor/**"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	AddToolFlags(serveCmd, &serveFlags)
	serveCmd.Flags().StringVar(&serveHTTP, "http", "", "Serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	registry, err := newRegistry(serveFlags)
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(registry, Version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	addr := serveHTTP
	if addr == "" {
		addr = appConfig.Serve.HTTPAddr
	}
	roots, err := registry.Policy().ReadRoots()
	if err != nil {
		return err
	}
	slog.Info("serving tools", "tools", server.ToolNames(), "roots", roots, "http", addr)
	if addr != "" {
		return server.RunHTTP(ctx, addr)
	}
	return server.Run(ctx)
}
