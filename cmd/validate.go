package cmd

import (
	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
)

var (
	validateFlags          ToolFlags
	validateAutofixPreview bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Lint a Markdown file without modifying it",
	Long: `Report structural problems such as unclosed code fences, skipped heading
levels, duplicate headings and broken front matter.

Examples:
  md-tools validate README.md
  md-tools validate README.md --autofix-preview   # show what formatting would change`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, validateFlags, tools.ValidateToolName,
			tools.ValidateArgs{FilePath: args[0], AutofixPreview: validateAutofixPreview},
			decodeInto(renderValidate))
	},
}

func init() {
	AddToolFlags(validateCmd, &validateFlags)
	validateCmd.Flags().BoolVar(&validateAutofixPreview, "autofix-preview", false, "Include the diff the built-in formatter would apply")
	rootCmd.AddCommand(validateCmd)
}
