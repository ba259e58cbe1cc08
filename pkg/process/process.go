// Package process runs external commands for the validation pipeline.
//
// Every interaction with the isolated environment (venv creation, pip,
// import checks, the test command) goes through a [Runner], so tests can
// substitute a fake and the pipeline never touches os/exec directly.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env is merged over the current process environment; entries here win.
	Env map[string]string

	// Output, if set, receives a live copy of stdout and stderr.
	Output io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd and returns its combined output. A non-zero exit yields
	// an *ExitError; a deadline yields an error wrapping context.DeadlineExceeded.
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError reports a command that exited with a non-zero status.
// Output holds the full combined stdout/stderr.
type ExitError struct {
	Command  string
	ExitCode int
	Output   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

// Tail returns at most the last n lines of the captured output.
func (e *ExitError) Tail(n int) string {
	lines := strings.Split(strings.TrimRight(string(e.Output), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// MergeEnv overlays overrides onto base ("KEY=value" entries) and returns a
// new slice. Keys in overrides replace matching base entries.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return append([]string(nil), base...)
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// Environ returns the current process environment merged with overrides.
func Environ(overrides map[string]string) []string {
	return MergeEnv(os.Environ(), overrides)
}
