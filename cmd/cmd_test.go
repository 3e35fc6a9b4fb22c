package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/samsaffron/md-tools/internal/testutil"
	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// resetFlags restores every flag to its default so runs don't leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command in dir with an empty config home.
func runCLI(t *testing.T, dir string, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(dir)

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestStatApplyCommands(t *testing.T) {
	root := testutil.TempDir(t)
	path := testutil.WriteMarkdown(t, root, "README.md", testutil.SampleReadme)

	out, err := runCLI(t, root, "", "stat", "README.md", "--json")
	if err != nil {
		t.Fatalf("stat error: %v\n%s", err, out)
	}
	var st tools.StatResult
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("stat output is not JSON: %v\n%s", err, out)
	}
	if st.Path != path || len(st.Sections) != 3 {
		t.Fatalf("stat = %s", out)
	}

	edits := `[{"op":"replace_section","heading_path":["Usage"],"new_markdown":"Run the binary."}]`
	out, err = runCLI(t, root, edits, "apply", "README.md", "--base-hash", st.ContentHash, "--json")
	if err != nil {
		t.Fatalf("apply error: %v\n%s", err, out)
	}
	if got := testutil.ReadFile(t, path); !strings.HasSuffix(got, "## Usage\n\nRun the binary.\n") {
		t.Errorf("file = %q", got)
	}

	// The old hash is stale now.
	out, err = runCLI(t, root, edits, "apply", "README.md", "--base-hash", st.ContentHash, "--json")
	if !errors.Is(err, errToolFailed) {
		t.Fatalf("stale apply error = %v", err)
	}
	if !strings.Contains(out, "PRECONDITION_FAILED") {
		t.Errorf("stale apply output = %s", out)
	}
}

func TestApplyRequiresBaseHash(t *testing.T) {
	root := testutil.TempDir(t)
	testutil.WriteMarkdown(t, root, "README.md", testutil.SampleReadme)

	_, err := runCLI(t, root, "[]", "apply", "README.md")
	if err == nil || !strings.Contains(err.Error(), "base-hash") {
		t.Errorf("error = %v, want missing base-hash", err)
	}
}

func TestSectionCommandPrintsMarkdown(t *testing.T) {
	root := testutil.TempDir(t)
	testutil.WriteMarkdown(t, root, "README.md", testutil.SampleReadme)

	out, err := runCLI(t, root, "", "section", "README.md", "Usage", "--json")
	if err != nil {
		t.Fatalf("section error: %v\n%s", err, out)
	}
	var r tools.ReadSectionResult
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("section output: %v\n%s", err, out)
	}
	if r.Markdown != "## Usage\n\nUse npm scripts.\n" {
		t.Errorf("markdown = %q", r.Markdown)
	}
}

func TestToolErrorGoesToStderr(t *testing.T) {
	root := testutil.TempDir(t)

	out, err := runCLI(t, root, "", "stat", "missing.md")
	if !errors.Is(err, errToolFailed) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(out, "Error [FILE_NOT_FOUND]") {
		t.Errorf("output = %q", out)
	}
}

func TestDisabledTool(t *testing.T) {
	root := testutil.TempDir(t)
	testutil.WriteMarkdown(t, root, "README.md", testutil.SampleReadme)

	_, err := runCLI(t, root, "", "validate", "README.md", "--tools", "md_stat")
	if err == nil || !strings.Contains(err.Error(), "not enabled") {
		t.Errorf("error = %v", err)
	}
}

func TestReadEdits(t *testing.T) {
	dir := testutil.TempDir(t)
	yamlPath := testutil.WriteMarkdown(t, dir, "edits.yaml", "- op: replace_match\n  pattern: npm\n  replacement: yarn\n")
	jsonPath := testutil.WriteMarkdown(t, dir, "edits.json", `[{"op":"replace_match"}]`)

	tests := []struct {
		name    string
		stdin   string
		source  string
		want    string
		wantErr string
	}{
		{name: "stdin", stdin: `[{"op":"x"}]`, source: "-", want: `[{"op":"x"}]`},
		{name: "json file", source: jsonPath, want: `[{"op":"replace_match"}]`},
		{name: "yaml file", source: yamlPath, want: `[{"op":"replace_match","pattern":"npm","replacement":"yarn"}]`},
		{name: "empty stdin", stdin: "  \n", source: "-", wantErr: "no edits"},
		{name: "missing file", source: dir + "/nope.json", wantErr: "failed to read edits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readEdits(strings.NewReader(tt.stdin), tt.source)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("readEdits() error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("readEdits() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetConfigValue(t *testing.T) {
	data := []byte("# md-tools\nedit:\n  # seconds\n  regex_timeout: 2s\n")

	out, err := setConfigValue(data, "edit.regex_timeout", "5s")
	if err != nil {
		t.Fatalf("setConfigValue() error: %v", err)
	}
	out, err = setConfigValue(out, "serve.http_addr", "127.0.0.1:8931")
	if err != nil {
		t.Fatalf("setConfigValue() error: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, "# md-tools") || !strings.Contains(s, "# seconds") {
		t.Errorf("comments lost:\n%s", s)
	}
	for key, want := range map[string]string{
		"edit.regex_timeout": "5s",
		"serve.http_addr":    "127.0.0.1:8931",
	} {
		got, err := getConfigValue(out, key)
		if err != nil || got != want {
			t.Errorf("get %s = %q, %v; want %q", key, got, err, want)
		}
	}

	if _, err := getConfigValue(out, "edit.missing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := setConfigValue([]byte("- a\n- b\n"), "x", "1"); err == nil {
		t.Error("expected error for non-mapping root")
	}
}

func TestSetConfigValueEmptyFile(t *testing.T) {
	out, err := setConfigValue(nil, "diagnostics.enabled", "true")
	if err != nil {
		t.Fatalf("setConfigValue() error: %v", err)
	}
	if string(out) != "diagnostics:\n  enabled: true\n" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderDiff(t *testing.T) {
	var buf bytes.Buffer
	renderDiff(&buf, "--- a/README.md\n+++ b/README.md\n@@ -1 +1 @@\n-old\n+new\n")
	got := buf.String()
	for _, want := range []string{"--- a/README.md", "@@ -1 +1 @@", "-old", "+new"} {
		if !strings.Contains(got, want) {
			t.Errorf("diff output missing %q:\n%s", want, got)
		}
	}
}

func TestLineSpan(t *testing.T) {
	tests := []struct {
		start, end int
		want       string
	}{
		{4, 17, "L4-16"},
		{5, 6, "L5"},
		{5, 5, "L5"},
	}
	for _, tt := range tests {
		if got := lineSpan(tt.start, tt.end); got != tt.want {
			t.Errorf("lineSpan(%d, %d) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "json", slog.LevelInfo).Debug("hidden")
	newLogger(&buf, "json", slog.LevelInfo).Info("shown", "k", "v")
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Errorf("debug message logged at info level: %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("json log = %s (%v)", line, err)
	}
}

func TestToolsFlagCompletion(t *testing.T) {
	got, _ := ToolsFlagCompletion(nil, nil, "md_stat,md_v")
	if len(got) != 1 || got[0] != "md_stat,md_validate" {
		t.Errorf("completion = %v", got)
	}
}

func TestToolsCommand(t *testing.T) {
	out, err := runCLI(t, testutil.TempDir(t), "", "tools", "--tools", "md_stat,md_apply")
	if err != nil {
		t.Fatalf("tools error: %v", err)
	}
	if !strings.Contains(out, "md_apply (edit)") || !strings.Contains(out, "md_stat (read)") || strings.Contains(out, "md_find") {
		t.Errorf("tools output = %q", out)
	}
}
