package cmd

import (
	"fmt"

	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
)

var toolsFlags ToolFlags

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the enabled tools and their descriptions",
	Long: `List the tools exposed by serve, with the kind of access each needs.

Examples:
  md-tools tools
  md-tools tools --tools md_stat,md_find`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry(toolsFlags)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, spec := range registry.GetSpecs() {
			fmt.Fprintf(w, "%s %s\n", titleStyle.Render(spec.Name), mutedStyle.Render("("+string(tools.GetToolKind(spec.Name))+")"))
			fmt.Fprintf(w, "  %s\n", firstLine(spec.Description))
		}
		return nil
	},
}

func init() {
	AddToolFlags(toolsCmd, &toolsFlags)
	rootCmd.AddCommand(toolsCmd)
}
