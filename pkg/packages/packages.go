// Package packages holds the per-package validation table.
//
// Each entry says how to build, install, and test one PyPI package:
// which artifact kind to fetch, what to pip-install before building and
// before testing, and the test command to run. Tables load from TOML,
// YAML, or JSON; a built-in table covers numpy, pandas, requests, and flask.
package packages

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/integrations"
)

// BuildSystemSetuptools is the only recognized build system.
const BuildSystemSetuptools = "setuptools"

// Config describes how to validate one package.
type Config struct {
	BuildSystem      string            `toml:"build_system" yaml:"build_system" json:"build_system"`
	UseSdist         bool              `toml:"use_sdist" yaml:"use_sdist" json:"use_sdist"`
	ImportName       string            `toml:"import_name" yaml:"import_name" json:"import_name,omitempty"`
	TestCommand      []string          `toml:"test_command" yaml:"test_command" json:"test_command"`
	AdditionalEnv    map[string]string `toml:"additional_env" yaml:"additional_env" json:"additional_env,omitempty"`
	Dependencies     []string          `toml:"dependencies" yaml:"dependencies" json:"dependencies"`
	TestDependencies []string          `toml:"test_dependencies" yaml:"test_dependencies" json:"test_dependencies"`
}

// Module returns the importable module name used to verify the install:
// ImportName when set, else the package name with "-" and "." mapped to "_".
func (c Config) Module(pkg string) string {
	if c.ImportName != "" {
		return c.ImportName
	}
	return strings.NewReplacer("-", "_", ".", "_").Replace(pkg)
}

func (c Config) clone() Config {
	c.TestCommand = slices.Clone(c.TestCommand)
	c.Dependencies = slices.Clone(c.Dependencies)
	c.TestDependencies = slices.Clone(c.TestDependencies)
	c.AdditionalEnv = maps.Clone(c.AdditionalEnv)
	return c
}

// Table maps package names to their Config. Lookups are PEP 503
// normalized, so "Flask" and "flask" find the same entry.
//
// A Table is read-only after construction and safe for concurrent use.
type Table struct {
	entries map[string]Config
	names   map[string]string
}

// NewTable builds a Table from name -> Config. Names that normalize to the
// same key are rejected.
func NewTable(m map[string]Config) (*Table, error) {
	t := &Table{
		entries: make(map[string]Config, len(m)),
		names:   make(map[string]string, len(m)),
	}
	for name, cfg := range m {
		key := integrations.NormalizePkgName(name)
		if prev, dup := t.names[key]; dup {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "duplicate package %q and %q", prev, name)
		}
		if cfg.BuildSystem == "" {
			cfg.BuildSystem = BuildSystemSetuptools
		}
		t.entries[key] = cfg.clone()
		t.names[key] = strings.TrimSpace(name)
	}
	return t, nil
}

// Lookup returns a copy of the config for name.
func (t *Table) Lookup(name string) (Config, bool) {
	cfg, ok := t.entries[integrations.NormalizePkgName(name)]
	if !ok {
		return Config{}, false
	}
	return cfg.clone(), true
}

// Name returns the spelling used in the table for name.
func (t *Table) Name(name string) (string, bool) {
	n, ok := t.names[integrations.NormalizePkgName(name)]
	return n, ok
}

// Names returns every package name in sorted order.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.names))
	for _, n := range t.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of packages.
func (t *Table) Len() int { return len(t.entries) }

// Validate checks every entry and returns the first problem as INVALID_CONFIG.
func (t *Table) Validate() error {
	for _, name := range t.Names() {
		cfg, _ := t.Lookup(name)
		if err := validateEntry(name, cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateEntry(name string, cfg Config) error {
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "package %q", name)
	}
	if cfg.BuildSystem != BuildSystemSetuptools {
		return errors.New(errors.ErrCodeInvalidConfig, "package %s: unsupported build system %q", name, cfg.BuildSystem)
	}
	if len(cfg.TestCommand) == 0 || strings.TrimSpace(cfg.TestCommand[0]) == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "package %s: empty test command", name)
	}
	if err := errors.ValidateImportName(cfg.Module(name)); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "package %s: set import_name", name)
	}
	for _, spec := range slices.Concat(cfg.Dependencies, cfg.TestDependencies) {
		if strings.TrimSpace(spec) == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "package %s: empty dependency specifier", name)
		}
	}
	for k := range cfg.AdditionalEnv {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			return errors.New(errors.ErrCodeInvalidConfig, "package %s: invalid environment variable name %q", name, k)
		}
	}
	return nil
}
