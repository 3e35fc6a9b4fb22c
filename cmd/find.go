package cmd

import (
	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
)

var (
	findFlags ToolFlags
	findPath  string
)

var findCmd = &cobra.Command{
	Use:   "find [pattern]",
	Short: "List Markdown files with their titles and hashes",
	Long: `Walk a readable directory and list files matching a glob pattern
(default **/*.{md,markdown,mdx}). Hidden files and directories are skipped.

Examples:
  md-tools find
  md-tools find "docs/**/*.md"
  md-tools find --path ~/notes --read-dir ~/notes`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := tools.FindArgs{Path: findPath}
		if len(args) > 0 {
			a.Pattern = args[0]
		}
		return runTool(cmd, findFlags, tools.FindToolName, a, decodeInto(renderFind))
	},
}

func init() {
	AddToolFlags(findCmd, &findFlags)
	findCmd.Flags().StringVar(&findPath, "path", "", "Directory to search (default: current directory)")
	rootCmd.AddCommand(findCmd)
}
