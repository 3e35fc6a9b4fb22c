package cmd

import (
	"strings"

	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
)

// ToolFlags holds the policy overrides shared by every tool command.
// Each command creates its own instance with its own variables.
type ToolFlags struct {
	Tools     string
	ReadDirs  []string
	WriteDirs []string
	Protected []string
}

// AddToolFlags adds tool-related flags (--tools, --read-dir, --write-dir, --protect)
func AddToolFlags(cmd *cobra.Command, f *ToolFlags) {
	cmd.Flags().StringVar(&f.Tools, "tools", "", "Enable tools (comma-separated, or 'all'): "+strings.Join(tools.AllToolNames(), ","))
	cmd.Flags().StringArrayVar(&f.ReadDirs, "read-dir", nil, "Directories files may be read from (repeatable, default: current directory)")
	cmd.Flags().StringArrayVar(&f.WriteDirs, "write-dir", nil, "Directories files may be written in (repeatable, default: read dirs)")
	cmd.Flags().StringArrayVar(&f.Protected, "protect", nil, "Glob of files that must never be written (repeatable)")
	if err := cmd.RegisterFlagCompletionFunc("tools", ToolsFlagCompletion); err != nil {
		panic("failed to register tools completion: " + err.Error())
	}
}

// ToolsFlagCompletion provides shell completion for the --tools flag.
func ToolsFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := ""
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix = toComplete[:i+1]
	}
	var out []string
	for _, name := range append([]string{"all"}, tools.AllToolNames()...) {
		if strings.HasPrefix(prefix+name, toComplete) {
			out = append(out, prefix+name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// newRegistry builds the tool registry from the loaded config with the
// command's flag overrides applied.
func newRegistry(f ToolFlags) (*tools.Registry, error) {
	cfg := *appConfig
	t := cfg.Tools
	if enabled := tools.ParseToolsFlag(f.Tools); len(enabled) > 0 {
		t.Enabled = enabled
	}
	t.ReadDirs = append(append([]string{}, t.ReadDirs...), f.ReadDirs...)
	t.WriteDirs = append(append([]string{}, t.WriteDirs...), f.WriteDirs...)
	t.Protected = append(append([]string{}, t.Protected...), f.Protected...)
	cfg.Tools = t
	return tools.NewRegistryFromConfig(&cfg)
}
