// Package processtest provides a scriptable process.Runner for tests.
package processtest

import (
	"context"
	"strings"
	"sync"

	"github.com/matzehuels/pyvalidate/pkg/process"
)

// HandlerFunc produces the output and error for one command.
type HandlerFunc func(ctx context.Context, cmd process.Command) ([]byte, error)

// Runner records every command and answers with Handler.
// A nil Handler succeeds with empty output.
type Runner struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []process.Command
}

// Run implements process.Runner.
func (r *Runner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &process.Result{ExitCode: -1}, err
	}
	if r.Handler == nil {
		return &process.Result{}, nil
	}
	out, err := r.Handler(ctx, cmd)
	res := &process.Result{Output: out}
	if ee, ok := err.(*process.ExitError); ok {
		res.ExitCode = ee.ExitCode
	}
	return res, err
}

// Calls returns a copy of the recorded commands.
func (r *Runner) Calls() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.calls...)
}

// CommandLines returns the recorded commands rendered as strings.
func (r *Runner) CommandLines() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.String())
	}
	return out
}

// Fail returns an ExitError for cmd with the given status and output.
func Fail(cmd process.Command, code int, output string) error {
	return &process.ExitError{Command: cmd.String(), ExitCode: code, Output: []byte(output)}
}

// Contains reports whether any argument of cmd contains substr.
func Contains(cmd process.Command, substr string) bool {
	return strings.Contains(cmd.String(), substr)
}

var _ process.Runner = (*Runner)(nil)
