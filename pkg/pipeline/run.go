package pipeline

import (
	"context"
	stderrors "errors"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pyvalidate/pkg/archive"
	"github.com/matzehuels/pyvalidate/pkg/coverage"
	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/observability"
	"github.com/matzehuels/pyvalidate/pkg/packages"
	"github.com/matzehuels/pyvalidate/pkg/process"
	"github.com/matzehuels/pyvalidate/pkg/resolve"
	"github.com/matzehuels/pyvalidate/pkg/results"
	"github.com/matzehuels/pyvalidate/pkg/venv"
)

// outputTailLines is how much of a failed command's output is logged.
const outputTailLines = 30

// run carries the state threaded through the steps of one package run.
type run struct {
	p      *Pipeline
	logger *log.Logger
	res    *Result

	cfg     packages.Config
	ws      *Workspace
	archive string
	env     *venv.Environment
	pkgDir  string

	// current is the step in progress, reported if it panics.
	current Step
}

// Run validates one package. version may be empty for the latest release.
// Run never panics on a step failure and always returns a Result; the
// scratch workspace is gone by the time it returns.
func (p *Pipeline) Run(ctx context.Context, name, version string) *Result {
	res := &Result{
		RunID:            uuid.NewString(),
		Package:          name,
		RequestedVersion: version,
		StartedAt:        time.Now(),
	}
	r := &run{
		p:      p,
		res:    res,
		logger: p.opts.Logger.With("package", name, "run", res.RunID[:8]),
	}

	r.logger.Info("starting validation", "version", orLatest(version))
	res.Step, res.Err = r.safeExecute(ctx)
	res.Duration = time.Since(res.StartedAt)

	if res.Err != nil {
		r.logFailure()
	} else {
		r.logSuccess()
	}

	observability.Pipeline().OnRunComplete(ctx, res.Package, res.Duration, res.Err)
	if err := p.opts.Results.Save(context.WithoutCancel(ctx), res.Record()); err != nil {
		r.logger.Warn("failed to record run", "err", err)
	}
	return res
}

// safeExecute runs execute and turns a panic in any step into an
// INTERNAL_ERROR result for this package alone. The workspace defer inside
// execute has already run by the time the panic reaches here.
func (r *run) safeExecute(ctx context.Context) (step Step, err error) {
	r.current = StepConfig
	defer func() {
		if v := recover(); v != nil {
			step = r.current
			err = errors.New(errors.ErrCodeInternal, "%s panicked: %v", r.current, v)
			r.logger.Error("step panicked", "step", r.current, "panic", v, "stack", string(debug.Stack()))
		}
	}()
	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) (Step, error) {
	if err := r.step(ctx, StepConfig, r.lookup); err != nil {
		return StepConfig, err
	}

	ws, err := NewWorkspace(r.p.opts.WorkDir, r.res.Package)
	if err != nil {
		return StepFetch, errors.Wrap(errors.ErrCodeInternal, err, "prepare workspace")
	}
	r.ws = ws
	r.logger.Debug("created temporary directory", "path", ws.Dir)
	defer func() {
		if err := ws.Remove(); err != nil {
			r.logger.Warn("failed to remove temporary directory", "path", ws.Dir, "err", err)
			return
		}
		r.logger.Info("cleaned up temporary directory", "path", ws.Dir)
	}()

	steps := []struct {
		step Step
		fn   func(context.Context) error
	}{
		{StepResolve, r.resolve},
		{StepFetch, r.fetch},
		{StepExtract, r.extract},
		{StepProvision, r.provision},
		{StepBootstrap, r.bootstrap},
		{StepDependencies, r.dependencies},
		{StepInstall, r.install},
		{StepVerify, r.verify},
		{StepTestDependencies, r.testDependencies},
		{StepTest, r.test},
		{StepCoverage, r.collect},
	}
	for _, s := range steps {
		if err := r.step(ctx, s.step, s.fn); err != nil {
			return s.step, err
		}
	}
	return StepDone, nil
}

// step runs fn under the step's timeout, reports it to the pipeline hooks,
// and gives any failure a code.
func (r *run) step(ctx context.Context, s Step, fn func(context.Context) error) error {
	r.current = s
	hooks := observability.Pipeline()
	hooks.OnStepStart(ctx, r.res.Package, string(s))
	r.logger.Debug("step started", "step", s)

	stepCtx := ctx
	timeout := r.p.opts.Timeouts.For(s)
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := classify(ctx, stepCtx, s, fn(stepCtx))
	hooks.OnStepComplete(ctx, r.res.Package, string(s), time.Since(start), err)
	return err
}

// classify maps a step failure to its final coded error:
// CANCELED when the caller gave up, TIMEOUT (wrapping the step's error) when
// the deadline passed, and the step's default code for uncoded errors.
func classify(parent, stepCtx context.Context, s Step, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(parent.Err(), context.Canceled) {
		return errors.Wrap(errors.ErrCodeCanceled, err, "%s canceled", s)
	}
	if errors.GetCode(err) == "" {
		err = errors.Wrap(s.code(), err, "%s failed", s)
	}
	if stderrors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, err, "%s timed out", s)
	}
	return err
}

// =============================================================================
// Steps
// =============================================================================

func (r *run) lookup(context.Context) error {
	cfg, ok := r.p.opts.Packages.Lookup(r.res.Package)
	if !ok {
		return errors.New(errors.ErrCodeUnknownPackage, "no configuration for package %s", r.res.Package)
	}
	name, _ := r.p.opts.Packages.Name(r.res.Package)
	if err := errors.ValidatePackageName(name); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "configured name %q", name)
	}
	if len(cfg.TestCommand) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "package %s has no test command", name)
	}
	if cfg.BuildSystem != packages.BuildSystemSetuptools {
		return errors.New(errors.ErrCodeInvalidConfig, "unsupported build system %q for %s", cfg.BuildSystem, name)
	}
	r.cfg = cfg
	r.res.Package = name
	return nil
}

func (r *run) resolve(ctx context.Context) error {
	a, err := r.p.opts.Resolver.Resolve(ctx, r.res.Package, r.res.RequestedVersion, r.cfg.UseSdist)
	if err != nil {
		return err
	}
	r.res.Artifact = a
	r.logger.Info("resolved artifact", "version", a.Version, "kind", a.Kind, "file", a.File.Filename)
	return nil
}

func (r *run) fetch(ctx context.Context) error {
	path, err := r.p.opts.Fetcher.Fetch(ctx, r.res.Artifact.File, r.ws.Dir)
	if err != nil {
		return err
	}
	r.archive = path
	return nil
}

func (r *run) extract(context.Context) error {
	if err := archive.Extract(r.archive, r.ws.Extracted()); err != nil {
		return err
	}
	r.logger.Info("extracted archive", "file", filepath.Base(r.archive))
	return nil
}

func (r *run) provision(ctx context.Context) error {
	env, err := r.p.opts.Provisioner.Create(ctx, r.ws.Venv())
	if err != nil {
		return err
	}
	r.env = env
	return nil
}

func (r *run) bootstrap(ctx context.Context) error {
	r.logger.Info("upgrading pip")
	return r.p.opts.Installer.Install(ctx, r.env, []string{"pip"}, venv.InstallOptions{Verbose: true})
}

func (r *run) dependencies(ctx context.Context) error {
	if len(r.cfg.Dependencies) == 0 {
		r.logger.Debug("no build dependencies configured")
		return nil
	}
	r.logger.Info("installing dependencies", "specs", strings.Join(r.cfg.Dependencies, " "))
	return r.p.opts.Installer.Install(ctx, r.env, r.cfg.Dependencies, venv.InstallOptions{Verbose: true})
}

func (r *run) install(ctx context.Context) error {
	inst := r.p.opts.Installer

	if r.res.Artifact.Kind == resolve.KindWheel {
		r.pkgDir = r.ws.Extracted()
		r.logger.Info("installing wheel", "file", filepath.Base(r.archive))
		return inst.Install(ctx, r.env, []string{r.archive}, venv.InstallOptions{Dir: r.pkgDir, Verbose: true})
	}

	dirs, err := archive.TopLevelDirs(r.ws.Extracted())
	if err != nil {
		return errors.Wrap(errors.ErrCodeNoExtractedDirectory, err, "list extracted files")
	}
	switch len(dirs) {
	case 0:
		return errors.New(errors.ErrCodeNoExtractedDirectory, "no directory found in %s", filepath.Base(r.archive))
	case 1:
	default:
		return errors.New(errors.ErrCodeAmbiguousExtractedDirectory,
			"expected one top-level directory in %s, found %d: %s",
			filepath.Base(r.archive), len(dirs), strings.Join(dirs, ", "))
	}
	r.pkgDir = filepath.Join(r.ws.Extracted(), dirs[0])

	if err := inst.CheckImport(ctx, r.env, r.cfg.BuildSystem, r.pkgDir); err != nil {
		return err
	}
	r.logger.Info("building from source", "dir", dirs[0])
	return inst.Install(ctx, r.env, []string{"."}, venv.InstallOptions{Dir: r.pkgDir, Verbose: true})
}

func (r *run) verify(ctx context.Context) error {
	module := r.cfg.Module(r.res.Package)
	version, err := r.p.opts.Installer.ModuleVersion(ctx, r.env, module)
	if err != nil {
		return err
	}
	r.res.InstalledVersion = version
	if version != r.res.Artifact.Version {
		r.logger.Warn("installed version differs from resolved version",
			"resolved", r.res.Artifact.Version, "installed", version)
	}
	r.logger.Info("verified installation", "module", module, "version", version)
	return nil
}

func (r *run) testDependencies(ctx context.Context) error {
	if len(r.cfg.TestDependencies) == 0 {
		return nil
	}
	r.logger.Info("installing test dependencies", "specs", strings.Join(r.cfg.TestDependencies, " "))
	return r.p.opts.Installer.Install(ctx, r.env, r.cfg.TestDependencies, venv.InstallOptions{Dir: r.pkgDir, Verbose: true})
}

func (r *run) test(ctx context.Context) error {
	argv := r.cfg.TestCommand

	vars := r.env.Env()
	maps.Copy(vars, r.cfg.AdditionalEnv)

	cmd := process.Command{
		Name:   toolPath(r.env, argv[0]),
		Args:   argv[1:],
		Dir:    r.pkgDir,
		Env:    vars,
		Output: r.p.opts.TestOutput,
	}
	r.logger.Info("running tests", "command", strings.Join(argv, " "))
	if _, err := r.p.opts.Runner.Run(ctx, cmd); err != nil {
		return errors.Wrap(errors.ErrCodeTestFailure, err, "test command %q failed", strings.Join(argv, " "))
	}
	return nil
}

func (r *run) collect(context.Context) error {
	a, err := coverage.Collect(r.pkgDir, r.p.ReportDir(r.res.Package))
	if err != nil {
		return err
	}
	r.res.Coverage = a
	return nil
}

// toolPath resolves a bare command name against the environment's bin
// directory so "coverage" runs the environment's copy, not the host's.
func toolPath(env *venv.Environment, name string) string {
	if strings.ContainsAny(name, `/\`) {
		return name
	}
	candidate := filepath.Join(env.BinDir(), name)
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		candidate += ".exe"
	}
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		return candidate
	}
	return name
}

// =============================================================================
// Reporting
// =============================================================================

func (r *run) logFailure() {
	res := r.res
	r.logger.Error("validation failed",
		"step", res.Step,
		"code", res.Code(),
		"err", res.Err,
		"duration", res.Duration.Round(time.Millisecond))

	var exitErr *process.ExitError
	if stderrors.As(res.Err, &exitErr) {
		r.logger.Error("command output", "exit", exitErr.ExitCode, "tail", exitErr.Tail(outputTailLines))
	}
}

func (r *run) logSuccess() {
	res := r.res
	kv := []any{
		"version", res.InstalledVersion,
		"report", res.Coverage.Index(),
		"duration", res.Duration.Round(time.Millisecond),
	}
	if s := res.Coverage.Summary; s != nil {
		kv = append(kv, "lines", formatPercent(s.LinePercent()), "branches", formatPercent(s.BranchPercent()))
	}
	r.logger.Info("validation passed", kv...)
}

// Record converts the result into a run history entry.
func (r *Result) Record() *results.Record {
	rec := &results.Record{
		ID:               r.RunID,
		Package:          r.Package,
		RequestedVersion: r.RequestedVersion,
		Status:           results.StatusPassed,
		StartedAt:        r.StartedAt,
		Duration:         r.Duration,
	}
	if a := r.Artifact; a != nil {
		rec.Version = a.Version
		rec.Artifact = a.File.Filename
		rec.Kind = string(a.Kind)
	}
	if r.InstalledVersion != "" {
		rec.Version = r.InstalledVersion
	}
	if c := r.Coverage; c != nil {
		rec.CoverageDir = c.Dir
		if c.Summary != nil {
			rec.LineRate = c.Summary.LineRate
			rec.BranchRate = c.Summary.BranchRate
		}
	}
	if r.Err != nil {
		rec.Status = results.StatusFailed
		rec.Step = string(r.Step)
		rec.ErrorCode = string(r.Code())
		rec.Error = r.Err.Error()
	}
	return rec
}

func orLatest(version string) string {
	if version == "" {
		return "latest"
	}
	return version
}
