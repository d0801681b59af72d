package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes external commands.
type Runner interface {
	// Output runs the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Stream runs the command with stdout connected to w.
	Stream(ctx context.Context, w io.Writer, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, commandErr(name, args, err, stderr.String())
	}
	return out, nil
}

// Stream implements Runner.
func (ExecRunner) Stream(ctx context.Context, w io.Writer, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return commandErr(name, args, err, stderr.String())
	}
	return nil
}

func commandErr(name string, args []string, err error, stderr string) error {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%s: %w: %s", cmdline, err, msg)
	}
	return fmt.Errorf("%s: %w", cmdline, err)
}
