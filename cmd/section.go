package cmd

import (
	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
)

var (
	sectionFlags         ToolFlags
	sectionID            string
	sectionNoSubsections bool
)

var sectionCmd = &cobra.Command{
	Use:   "section <file> [heading...]",
	Short: "Print one section of a Markdown file",
	Long: `Print the Markdown of a section addressed by its heading path or by the
section id shown by stat. A heading path matches as a suffix, so "Install"
finds "Guide > Install" when it is unique.

Examples:
  md-tools section README.md Install
  md-tools section README.md Guide Install --no-subsections
  md-tools section README.md --id s-3f2a9c1d0b7e
  md-tools section README.md Install > install.md   # raw Markdown when piped`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{rawWhenPiped: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := tools.ReadSectionArgs{
			FilePath:    args[0],
			HeadingPath: args[1:],
			SectionID:   sectionID,
		}
		if sectionNoSubsections {
			include := false
			a.IncludeSubsections = &include
		}
		return runTool(cmd, sectionFlags, tools.ReadSectionToolName, a, decodeInto(renderSectionMarkdown))
	},
}

func init() {
	AddToolFlags(sectionCmd, &sectionFlags)
	sectionCmd.Flags().StringVar(&sectionID, "id", "", "Address the section by id instead of heading path")
	sectionCmd.Flags().BoolVar(&sectionNoSubsections, "no-subsections", false, "Stop at the first subsection heading")
	rootCmd.AddCommand(sectionCmd)
}
