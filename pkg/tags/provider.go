package tags

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/matzehuels/pyvalidate/pkg/process"
)

// Provider supplies the tags supported by the target interpreter.
type Provider interface {
	Tags(ctx context.Context) (Set, error)
}

// StaticProvider returns a fixed tag set, typically from configuration.
type StaticProvider struct {
	set Set
}

// NewStaticProvider parses list (compressed tags allowed) into a provider.
func NewStaticProvider(list []string) (*StaticProvider, error) {
	set, err := ParseAll(list)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("static platform tags: empty list")
	}
	return &StaticProvider{set: set}, nil
}

// Tags implements Provider.
func (p *StaticProvider) Tags(context.Context) (Set, error) { return p.set, nil }

// tagScript prints one supported tag per line, preferring a standalone
// packaging install over the copy vendored inside pip.
const tagScript = `try:
    from packaging.tags import sys_tags
except ImportError:
    from pip._vendor.packaging.tags import sys_tags
for t in sys_tags():
    print(t)
`

// InterpreterProvider asks a Python interpreter for its supported tags.
// The result is computed once and reused.
type InterpreterProvider struct {
	python string
	runner process.Runner

	mu  sync.Mutex
	set Set
}

// NewInterpreterProvider asks python through runner.
func NewInterpreterProvider(python string, runner process.Runner) *InterpreterProvider {
	return &InterpreterProvider{python: python, runner: runner}
}

// Tags implements Provider.
func (p *InterpreterProvider) Tags(ctx context.Context) (Set, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set != nil {
		return p.set, nil
	}

	res, err := p.runner.Run(ctx, process.Command{
		Name: p.python,
		Args: []string{"-c", tagScript},
	})
	if err != nil {
		return nil, fmt.Errorf("query platform tags with %s: %w", p.python, err)
	}

	set := make(Set)
	for line := range strings.Lines(string(res.Output)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parsed, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("query platform tags: %w", err)
		}
		for t := range parsed {
			set.Add(t)
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("query platform tags with %s: no tags reported", p.python)
	}
	p.set = set
	return set, nil
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = (*InterpreterProvider)(nil)
)
