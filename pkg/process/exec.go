package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	//nolint:gosec // G204: commands come from the package configuration table
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = Environ(c.Env)
	}

	var buf bytes.Buffer
	var w io.Writer = &buf
	if c.Output != nil {
		w = io.MultiWriter(&buf, c.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	start := time.Now()
	err := cmd.Run()
	res := &Result{Output: buf.Bytes(), Duration: time.Since(start)}

	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", c, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Command: c.String(), ExitCode: res.ExitCode, Output: res.Output}
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%s: %w", c, err)
}

var _ Runner = (*ExecRunner)(nil)
