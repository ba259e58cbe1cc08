// Package venv provisions isolated Python environments and installs into them.
//
// An [Environment] is created with "python -m venv", which bundles pip.
// All later commands run the environment's own interpreter, so nothing is
// ever installed into the host's site-packages.
package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/process"
)

// DefaultPython is the base interpreter used to create environments.
const DefaultPython = "python3"

// Environment is an isolated interpreter environment.
type Environment struct {
	Root   string
	Python string
}

// BinDir returns the directory holding the environment's executables.
func (e *Environment) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.Root, "Scripts")
	}
	return filepath.Join(e.Root, "bin")
}

// Env returns the variables that activate the environment for a child
// process: VIRTUAL_ENV, and PATH with BinDir first.
func (e *Environment) Env() map[string]string {
	path := e.BinDir()
	if cur := os.Getenv("PATH"); cur != "" {
		path += string(os.PathListSeparator) + cur
	}
	return map[string]string{
		"VIRTUAL_ENV": e.Root,
		"PATH":        path,
	}
}

func interpreterPath(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Scripts", "python.exe")
	}
	return filepath.Join(root, "bin", "python")
}

// Provisioner creates environments from a base interpreter.
type Provisioner struct {
	python string
	runner process.Runner
	logger *log.Logger
}

// NewProvisioner creates a Provisioner. An empty python uses DefaultPython.
func NewProvisioner(python string, runner process.Runner, logger *log.Logger) *Provisioner {
	if python == "" {
		python = DefaultPython
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Provisioner{python: python, runner: runner, logger: logger}
}

// Python returns the base interpreter.
func (p *Provisioner) Python() string { return p.python }

// Create builds a fresh environment at path. path must not already hold an
// environment. Failures carry ENVIRONMENT_CREATION_ERROR.
func (p *Provisioner) Create(ctx context.Context, path string) (*Environment, error) {
	p.logger.Info("creating virtual environment", "path", path)

	_, err := p.runner.Run(ctx, process.Command{
		Name: p.python,
		Args: []string{"-m", "venv", path},
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEnvironmentCreation, err, "create environment at %s", path)
	}
	return &Environment{Root: path, Python: interpreterPath(path)}, nil
}

// InstallOptions tunes a single pip invocation.
type InstallOptions struct {
	// Dir is the working directory, e.g. an unpacked sdist for "pip install .".
	Dir       string
	Verbose   bool
	ExtraArgs []string
}

// Installer runs pip inside an environment.
type Installer struct {
	runner process.Runner
	logger *log.Logger
}

// NewInstaller creates an Installer.
func NewInstaller(runner process.Runner, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{runner: runner, logger: logger}
}

// Install runs "pip install --upgrade <specs...>" once. Empty specs is a no-op.
// Failures carry INSTALL_ERROR and wrap the *process.ExitError holding the
// full pip output.
func (i *Installer) Install(ctx context.Context, env *Environment, specs []string, opts InstallOptions) error {
	if len(specs) == 0 {
		return nil
	}

	args := append([]string{"-m", "pip", "install", "--upgrade"}, specs...)
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	args = append(args, opts.ExtraArgs...)

	i.logger.Debug("pip install", "specs", strings.Join(specs, " "), "dir", opts.Dir)
	_, err := i.runner.Run(ctx, process.Command{
		Name: env.Python,
		Args: args,
		Dir:  opts.Dir,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInstall, err, "pip install %s", strings.Join(specs, " "))
	}
	return nil
}

// CheckImport fails with BUILD_TOOL_MISSING unless module imports inside env.
func (i *Installer) CheckImport(ctx context.Context, env *Environment, module, dir string) error {
	_, err := i.runner.Run(ctx, process.Command{
		Name: env.Python,
		Args: []string{"-c", "import " + module},
		Dir:  dir,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeBuildToolMissing, err, "module %q is not available; build dependencies may be missing", module)
	}
	i.logger.Debug("module available", "module", module)
	return nil
}

// ModuleVersion imports module inside env and returns its __version__.
// An import failure or an empty version carries VERIFICATION_ERROR.
func (i *Installer) ModuleVersion(ctx context.Context, env *Environment, module string) (string, error) {
	if err := errors.ValidateImportName(module); err != nil {
		return "", errors.Wrap(errors.ErrCodeVerification, err, "verify %s", module)
	}

	script := fmt.Sprintf("import %[1]s; print(%[1]s.__version__)", module)
	res, err := i.runner.Run(ctx, process.Command{
		Name: env.Python,
		Args: []string{"-c", script},
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeVerification, err, "import %s", module)
	}

	version := lastLine(string(res.Output))
	if version == "" {
		return "", errors.New(errors.ErrCodeVerification, "%s reports an empty version", module)
	}
	return version, nil
}

// lastLine returns the last non-empty line, skipping warnings printed first.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
