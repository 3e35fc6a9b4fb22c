package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultFormatTimeout bounds an external formatter run.
const DefaultFormatTimeout = 10 * time.Second

// CommandFormatter pipes a document through an external command, for example
// `prettier --parser markdown`. The command reads Markdown on stdin and
// writes the formatted Markdown to stdout.
type CommandFormatter struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Format implements mdedit.Formatter.
func (f CommandFormatter) Format(ctx context.Context, text string) (string, error) {
	if f.Command == "" {
		return "", fmt.Errorf("no formatter command configured")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFormatTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, f.Command, f.Args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%s timed out after %s", f.Command, timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", f.Command, err)
		}
		return "", fmt.Errorf("%s: %w: %s", f.Command, err, msg)
	}
	return stdout.String(), nil
}
