package adb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes one external process and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := newCommand(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}

	return stdout.Bytes(), nil
}

func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	return cmd
}

// Execute runs c and, for commands with an OutputFile, stores stdout there.
func Execute(ctx context.Context, r Runner, c Command) error {
	out, err := r.Run(ctx, c.Name, c.Args...)
	if err != nil {
		return err
	}
	if c.OutputFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.OutputFile), 0755); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}
	if len(out) == 0 {
		return fmt.Errorf("%s produced no output", c.Description)
	}

	return os.WriteFile(c.OutputFile, out, 0644)
}
