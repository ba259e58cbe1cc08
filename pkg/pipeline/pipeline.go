// Package pipeline validates Python packages end to end.
//
// For each configured package a [Pipeline] walks a fixed sequence of steps:
//
//  1. config: look up the package in the configuration table (no I/O)
//  2. resolve: pick an sdist or a compatible wheel from the catalog
//  3. fetch: download it into a fresh scratch workspace
//  4. extract: unpack it under extracted/
//  5. provision: create an isolated environment under venv/
//  6. bootstrap: upgrade pip inside the environment
//  7. dependencies: install build dependencies
//  8. install: "pip install ." for an sdist, or the wheel itself
//  9. verify: import the module and read its __version__
//  10. test_dependencies: install test dependencies
//  11. test: run the configured test command under coverage
//  12. coverage: move coverage.xml and coverage_html/ to <output>/<package>/
//
// The workspace is removed when the run ends, whatever the outcome. A failed
// step ends that package's run with a coded [errors.Error]; in a batch the
// next package starts regardless.
//
// # Usage
//
//	p, err := pipeline.New(pipeline.Options{
//	    Packages:    packages.Default(),
//	    Resolver:    resolve.New(catalog, tagProvider, logger),
//	    Fetcher:     fetch.New(nil, logger),
//	    Provisioner: venv.NewProvisioner("python3", runner, logger),
//	    Installer:   venv.NewInstaller(runner, logger),
//	    Runner:      runner,
//	    Logger:      logger,
//	})
//	batch := p.RunBatch(ctx, []string{"requests", "flask"})
//	if !batch.OK() {
//	    os.Exit(1)
//	}
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyvalidate/pkg/coverage"
	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/integrations/pypi"
	"github.com/matzehuels/pyvalidate/pkg/packages"
	"github.com/matzehuels/pyvalidate/pkg/process"
	"github.com/matzehuels/pyvalidate/pkg/resolve"
	"github.com/matzehuels/pyvalidate/pkg/results"
	"github.com/matzehuels/pyvalidate/pkg/venv"
)

// DefaultOutputDir is where coverage reports are collected when
// Options.OutputDir is empty.
const DefaultOutputDir = "coverage_reports"

// =============================================================================
// Steps
// =============================================================================

// Step names one stage of a package run.
type Step string

const (
	StepConfig           Step = "config"
	StepResolve          Step = "resolve"
	StepFetch            Step = "fetch"
	StepExtract          Step = "extract"
	StepProvision        Step = "provision"
	StepBootstrap        Step = "bootstrap"
	StepDependencies     Step = "dependencies"
	StepInstall          Step = "install"
	StepVerify           Step = "verify"
	StepTestDependencies Step = "test_dependencies"
	StepTest             Step = "test"
	StepCoverage         Step = "coverage"
	StepDone             Step = "done"
)

// Steps lists the steps in execution order.
var Steps = []Step{
	StepConfig, StepResolve, StepFetch, StepExtract, StepProvision, StepBootstrap,
	StepDependencies, StepInstall, StepVerify, StepTestDependencies, StepTest, StepCoverage,
}

// code is the error code attached to an uncoded failure of the step.
func (s Step) code() errors.Code {
	switch s {
	case StepConfig:
		return errors.ErrCodeInvalidConfig
	case StepResolve, StepFetch:
		return errors.ErrCodeDownload
	case StepExtract:
		return errors.ErrCodeExtraction
	case StepProvision:
		return errors.ErrCodeEnvironmentCreation
	case StepBootstrap, StepDependencies, StepInstall, StepTestDependencies:
		return errors.ErrCodeInstall
	case StepVerify:
		return errors.ErrCodeVerification
	case StepTest:
		return errors.ErrCodeTestFailure
	case StepCoverage:
		return errors.ErrCodeCoverageArtifactMissing
	default:
		return errors.ErrCodeInternal
	}
}

// =============================================================================
// Timeouts
// =============================================================================

// Timeouts bounds individual steps. Zero means unbounded.
type Timeouts struct {
	// Download applies to resolve and fetch.
	Download time.Duration
	// Install applies to provisioning and every pip invocation.
	Install time.Duration
	// Test applies to the test command.
	Test time.Duration
	// Step applies to any step without a more specific timeout.
	Step time.Duration
}

// For returns the timeout for step s.
func (t Timeouts) For(s Step) time.Duration {
	var d time.Duration
	switch s {
	case StepResolve, StepFetch:
		d = t.Download
	case StepProvision, StepBootstrap, StepDependencies, StepInstall, StepTestDependencies:
		d = t.Install
	case StepTest:
		d = t.Test
	}
	if d == 0 {
		d = t.Step
	}
	return d
}

// =============================================================================
// Collaborators
// =============================================================================

// Resolver selects the release file for a package.
type Resolver interface {
	Resolve(ctx context.Context, name, version string, preferSource bool) (*resolve.Artifact, error)
}

// Fetcher downloads a release file into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, file pypi.File, dir string) (string, error)
}

// Provisioner creates isolated environments.
type Provisioner interface {
	Create(ctx context.Context, path string) (*venv.Environment, error)
}

// Installer installs into and inspects an environment.
type Installer interface {
	Install(ctx context.Context, env *venv.Environment, specs []string, opts venv.InstallOptions) error
	CheckImport(ctx context.Context, env *venv.Environment, module, dir string) error
	ModuleVersion(ctx context.Context, env *venv.Environment, module string) (string, error)
}

var (
	_ Resolver    = (*resolve.Resolver)(nil)
	_ Provisioner = (*venv.Provisioner)(nil)
	_ Installer   = (*venv.Installer)(nil)
)

// =============================================================================
// Options
// =============================================================================

// Options configures a Pipeline. Packages, Resolver, Fetcher, Provisioner,
// Installer and Runner are required.
type Options struct {
	Packages    *packages.Table
	Resolver    Resolver
	Fetcher     Fetcher
	Provisioner Provisioner
	Installer   Installer
	// Runner executes the test command.
	Runner process.Runner

	// Results records one entry per run. Defaults to a NullStore.
	Results results.Store

	// OutputDir receives <package>/coverage.xml and <package>/coverage_html.
	// Relative paths are resolved against the working directory.
	OutputDir string
	// WorkDir is the parent of scratch workspaces; empty uses os.TempDir().
	WorkDir string

	Timeouts Timeouts

	// TestOutput, when set, receives the test command's output as it runs.
	TestOutput io.Writer

	Logger *log.Logger
}

// ValidateAndSetDefaults checks required fields and fills defaults.
func (o *Options) ValidateAndSetDefaults() error {
	switch {
	case o.Packages == nil:
		return fmt.Errorf("packages table is required")
	case o.Resolver == nil:
		return fmt.Errorf("resolver is required")
	case o.Fetcher == nil:
		return fmt.Errorf("fetcher is required")
	case o.Provisioner == nil:
		return fmt.Errorf("provisioner is required")
	case o.Installer == nil:
		return fmt.Errorf("installer is required")
	case o.Runner == nil:
		return fmt.Errorf("process runner is required")
	}
	if o.Timeouts.Download < 0 || o.Timeouts.Install < 0 || o.Timeouts.Test < 0 || o.Timeouts.Step < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	if o.Results == nil {
		o.Results = results.NewNullStore()
	}
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	abs, err := filepath.Abs(o.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	o.OutputDir = abs
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return nil
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline runs package validations. Runs are independent; a Pipeline may be
// reused for any number of packages.
type Pipeline struct {
	opts Options
}

// New creates a Pipeline from opts.
func New(opts Options) (*Pipeline, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid pipeline options")
	}
	return &Pipeline{opts: opts}, nil
}

// OutputDir returns the absolute directory coverage reports are written to.
func (p *Pipeline) OutputDir() string { return p.opts.OutputDir }

// ReportDir returns the directory holding the reports for pkg.
func (p *Pipeline) ReportDir(pkg string) string {
	return filepath.Join(p.opts.OutputDir, pkg)
}

// Result is the outcome of one package run.
type Result struct {
	RunID            string
	Package          string
	RequestedVersion string

	// Artifact is the selected release file; nil if resolution never ran.
	Artifact *resolve.Artifact
	// InstalledVersion is the __version__ reported after install.
	InstalledVersion string
	// Coverage is set when the run succeeded.
	Coverage *coverage.Artifacts

	// Step is the failed step, or StepDone on success.
	Step Step
	Err  error

	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether the run succeeded.
func (r *Result) OK() bool { return r.Err == nil }

// Code returns the error code of a failed run.
func (r *Result) Code() errors.Code { return errors.GetCode(r.Err) }
