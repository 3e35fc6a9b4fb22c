package cmd

import (
	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
)

var statFlags ToolFlags

var statCmd = &cobra.Command{
	Use:   "stat <file>",
	Short: "Show the structure and content hash of a Markdown file",
	Long: `Print the content hash, encoding, line ending, front matter and the
section outline of a Markdown file. The hash is the --base-hash that
apply requires.

Examples:
  md-tools stat README.md
  md-tools stat docs/guide.md --json | jq -r .content_hash`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, statFlags, tools.StatToolName,
			tools.StatArgs{FilePath: args[0]},
			decodeInto(renderStat))
	},
}

func init() {
	AddToolFlags(statCmd, &statFlags)
	rootCmd.AddCommand(statCmd)
}
