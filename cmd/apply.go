package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	applyFlags    ToolFlags
	applyBaseHash string
	applyEdits    string
	applyNoAtomic bool
	applyDryRun   bool
	applyFormat   bool
	applyDiff     bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Apply a batch of edits to a Markdown file as one transaction",
	Long: `Apply a list of edits (JSON or YAML) to a Markdown file. The batch is
planned against --base-hash, the content hash printed by stat; if the file
changed since, nothing is written.

Edit operations: replace_range, replace_match, replace_section,
insert_after_heading, update_front_matter.

Examples:
  md-tools apply README.md --base-hash $(md-tools stat README.md --json | jq -r .content_hash) --edits edits.json
  md-tools apply README.md --base-hash <hash> --edits edits.yaml --dry-run
  echo '[{"op":"replace_match","pattern":"npm","replacement":"yarn"}]' | md-tools apply README.md --base-hash <hash> --edits -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := readEdits(cmd.InOrStdin(), applyEdits)
		if err != nil {
			return err
		}
		a := tools.ApplyArgs{
			FilePath:        args[0],
			BaseContentHash: applyBaseHash,
			Edits:           edits,
			DryRun:          applyDryRun,
			Format:          applyFormat,
		}
		if applyNoAtomic {
			atomic := false
			a.Atomic = &atomic
		}
		if cmd.Flags().Changed("diff") {
			a.IncludeDiff = &applyDiff
		}
		return runTool(cmd, applyFlags, tools.ApplyToolName, a, decodeInto(renderApply))
	},
}

func init() {
	AddToolFlags(applyCmd, &applyFlags)
	applyCmd.Flags().StringVar(&applyBaseHash, "base-hash", "", "Content hash the edits were planned against (from stat)")
	applyCmd.Flags().StringVarP(&applyEdits, "edits", "e", "-", "File with the edit list (.json, .yaml or .yml), or - for stdin")
	applyCmd.Flags().BoolVar(&applyNoAtomic, "no-atomic", false, "Skip failing edits instead of rolling back the whole batch")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Plan and diff the edits without writing")
	applyCmd.Flags().BoolVar(&applyFormat, "format", false, "Run the formatter over the result")
	applyCmd.Flags().BoolVar(&applyDiff, "diff", false, "Include a unified diff in the result (default from edit.include_diff)")
	if err := applyCmd.MarkFlagRequired("base-hash"); err != nil {
		panic("failed to mark base-hash required: " + err.Error())
	}
	rootCmd.AddCommand(applyCmd)
}

// readEdits loads the edit list from source ("-" for stdin) and returns it
// as JSON. YAML input is converted; anything else is passed through so the
// engine reports decoding errors with edit indexes.
func readEdits(stdin io.Reader, source string) (json.RawMessage, error) {
	var data []byte
	var err error
	if source == "-" || source == "" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read edits: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("no edits given")
	}

	ext := strings.ToLower(filepath.Ext(source))
	if ext != ".yaml" && ext != ".yml" {
		return json.RawMessage(data), nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to JSON: %w", source, err)
	}
	return out, nil
}
