package venv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	pverrors "github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/process"
	"github.com/matzehuels/pyvalidate/pkg/process/processtest"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

func TestProvisionerCreate(t *testing.T) {
	runner := &processtest.Runner{}
	p := NewProvisioner("", runner, quietLogger())

	root := filepath.Join(t.TempDir(), "venv")
	env, err := p.Create(context.Background(), root)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if env.Root != root {
		t.Errorf("Root = %s", env.Root)
	}
	if runtime.GOOS != "windows" && env.Python != filepath.Join(root, "bin", "python") {
		t.Errorf("Python = %s", env.Python)
	}

	calls := runner.CommandLines()
	if len(calls) != 1 || calls[0] != "python3 -m venv "+root {
		t.Errorf("commands = %v", calls)
	}
}

func TestProvisionerCreateFailure(t *testing.T) {
	runner := &processtest.Runner{
		Handler: func(_ context.Context, cmd process.Command) ([]byte, error) {
			return nil, processtest.Fail(cmd, 1, "No space left on device")
		},
	}
	_, err := NewProvisioner("python3.11", runner, quietLogger()).Create(context.Background(), t.TempDir())
	if !pverrors.Is(err, pverrors.ErrCodeEnvironmentCreation) {
		t.Errorf("Create() error = %v, want ENVIRONMENT_CREATION_ERROR", err)
	}
}

func TestEnvironmentEnv(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	env := &Environment{Root: "/work/venv"}

	vars := env.Env()
	if vars["VIRTUAL_ENV"] != "/work/venv" {
		t.Errorf("VIRTUAL_ENV = %s", vars["VIRTUAL_ENV"])
	}
	if !strings.HasPrefix(vars["PATH"], env.BinDir()+string(os.PathListSeparator)) {
		t.Errorf("PATH = %s, want bin dir first", vars["PATH"])
	}
	if !strings.HasSuffix(vars["PATH"], "/usr/bin") {
		t.Errorf("PATH = %s, want host PATH preserved", vars["PATH"])
	}
}

func TestInstall(t *testing.T) {
	env := &Environment{Root: "/v", Python: "/v/bin/python"}

	tests := []struct {
		name  string
		specs []string
		opts  InstallOptions
		want  []string
	}{
		{"empty is no-op", nil, InstallOptions{}, nil},
		{
			"specs with upgrade",
			[]string{"setuptools", "wheel"},
			InstallOptions{},
			[]string{"-m", "pip", "install", "--upgrade", "setuptools", "wheel"},
		},
		{
			"verbose and extra args",
			[]string{"."},
			InstallOptions{Dir: "/src/pkg", Verbose: true, ExtraArgs: []string{"--no-build-isolation"}},
			[]string{"-m", "pip", "install", "--upgrade", ".", "--verbose", "--no-build-isolation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &processtest.Runner{}
			inst := NewInstaller(runner, quietLogger())
			if err := inst.Install(context.Background(), env, tt.specs, tt.opts); err != nil {
				t.Fatalf("Install() error: %v", err)
			}

			calls := runner.Calls()
			if tt.want == nil {
				if len(calls) != 0 {
					t.Errorf("expected no commands, got %v", runner.CommandLines())
				}
				return
			}
			if len(calls) != 1 {
				t.Fatalf("expected one pip invocation, got %d", len(calls))
			}
			if calls[0].Name != env.Python || !slices.Equal(calls[0].Args, tt.want) {
				t.Errorf("command = %s", calls[0])
			}
			if calls[0].Dir != tt.opts.Dir {
				t.Errorf("Dir = %q, want %q", calls[0].Dir, tt.opts.Dir)
			}
		})
	}
}

func TestInstallFailureKeepsDiagnostics(t *testing.T) {
	runner := &processtest.Runner{
		Handler: func(_ context.Context, cmd process.Command) ([]byte, error) {
			return nil, processtest.Fail(cmd, 1, "ERROR: No matching distribution found for nope")
		},
	}
	env := &Environment{Python: "/v/bin/python"}

	err := NewInstaller(runner, quietLogger()).Install(context.Background(), env, []string{"nope"}, InstallOptions{})
	if !pverrors.Is(err, pverrors.ErrCodeInstall) {
		t.Fatalf("Install() error = %v, want INSTALL_ERROR", err)
	}
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatal("INSTALL_ERROR should wrap the process exit error")
	}
	if exitErr.ExitCode != 1 || !strings.Contains(string(exitErr.Output), "No matching distribution") {
		t.Errorf("exit error = %d %q", exitErr.ExitCode, exitErr.Output)
	}
}

func TestCheckImport(t *testing.T) {
	env := &Environment{Python: "/v/bin/python"}

	ok := &processtest.Runner{}
	if err := NewInstaller(ok, quietLogger()).CheckImport(context.Background(), env, "setuptools", "/src"); err != nil {
		t.Fatalf("CheckImport() error: %v", err)
	}
	if got := ok.Calls()[0]; got.Dir != "/src" || got.Args[1] != "import setuptools" {
		t.Errorf("command = %s in %s", got, got.Dir)
	}

	missing := &processtest.Runner{
		Handler: func(_ context.Context, cmd process.Command) ([]byte, error) {
			return nil, processtest.Fail(cmd, 1, "ModuleNotFoundError: No module named 'setuptools'")
		},
	}
	err := NewInstaller(missing, quietLogger()).CheckImport(context.Background(), env, "setuptools", "")
	if !pverrors.Is(err, pverrors.ErrCodeBuildToolMissing) {
		t.Errorf("CheckImport() error = %v, want BUILD_TOOL_MISSING", err)
	}
}

func TestModuleVersion(t *testing.T) {
	env := &Environment{Python: "/v/bin/python"}

	tests := []struct {
		name   string
		module string
		out    string
		err    error
		want   string
		fails  bool
	}{
		{"ok", "requests", "2.32.3\n", nil, "2.32.3", false},
		{"warning before version", "requests", "UserWarning: something\n2.32.3\n", nil, "2.32.3", false},
		{"empty version", "requests", "\n", nil, "", true},
		{"import error", "requests", "", errors.New("exit status 1"), "", true},
		{"invalid module", "not-a-module", "", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &processtest.Runner{
				Handler: func(context.Context, process.Command) ([]byte, error) {
					return []byte(tt.out), tt.err
				},
			}
			got, err := NewInstaller(runner, quietLogger()).ModuleVersion(context.Background(), env, tt.module)
			if tt.fails {
				if !pverrors.Is(err, pverrors.ErrCodeVerification) {
					t.Errorf("ModuleVersion() error = %v, want VERIFICATION_ERROR", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ModuleVersion() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}
