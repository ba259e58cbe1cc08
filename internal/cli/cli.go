// Package cli implements the pyvalidate command-line interface.
//
// # Commands
//
//   - run: validate packages (every configured package by default)
//   - resolve: show which release file would be installed
//   - packages: list the package configuration table
//   - tags: print the interpreter's supported platform tags
//   - history: list recorded runs
//   - serve: serve collected reports over HTTP
//   - cache: manage the catalog response cache
//   - config: show which config files are read and check one in isolation
//
// Settings come from internal/config; --config names an extra file.
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/internal/config"
	"github.com/matzehuels/pyvalidate/pkg/buildinfo"
	"github.com/matzehuels/pyvalidate/pkg/cache"
	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/fetch"
	"github.com/matzehuels/pyvalidate/pkg/integrations/pypi"
	"github.com/matzehuels/pyvalidate/pkg/packages"
	"github.com/matzehuels/pyvalidate/pkg/pipeline"
	"github.com/matzehuels/pyvalidate/pkg/process"
	"github.com/matzehuels/pyvalidate/pkg/resolve"
	"github.com/matzehuels/pyvalidate/pkg/results"
	"github.com/matzehuels/pyvalidate/pkg/tags"
	"github.com/matzehuels/pyvalidate/pkg/venv"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "pyvalidate"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pyvalidate builds, installs, and tests Python packages in isolation",
		Long: `pyvalidate validates Python packages from PyPI: it downloads a source
distribution or a compatible wheel, installs it into a fresh virtual
environment, checks the import, runs the package's tests under coverage, and
collects the coverage reports.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "additional config file")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.packagesCommand())
	root.AddCommand(c.tagsCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Component Factories
// =============================================================================

// loadPackages returns the configured package table, or the built-in one.
func (c *CLI) loadPackages() (*packages.Table, error) {
	if c.Config.PackagesFile == "" {
		return packages.Default(), nil
	}
	t, err := packages.Load(c.Config.PackagesFile)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// newCache opens the catalog response cache selected by catalog.cache.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	switch c.Config.Catalog.Cache {
	case config.CacheFile:
		return cache.NewFileCache(c.Config.CacheDir())
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, c.Config.Catalog.RedisURL)
	default:
		return cache.NewNullCache(), nil
	}
}

// newCatalog creates the PyPI client. The caller must close the returned cache.
func (c *CLI) newCatalog(ctx context.Context) (*pypi.Client, cache.Cache, error) {
	backend, err := c.newCache(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog cache: %w", err)
	}
	ttl := c.Config.Catalog.CacheTTL
	if c.Config.Catalog.Cache == config.CacheNone {
		ttl = 0
	}
	client := pypi.NewClient(backend, ttl)
	client.SetBaseURL(c.Config.Catalog.URL)
	client.SetAttempts(c.Config.Catalog.Retries)
	return client, backend, nil
}

// newTagProvider returns the static platform_tags override when configured,
// else a provider that asks the base interpreter.
func (c *CLI) newTagProvider(runner process.Runner) (tags.Provider, error) {
	if len(c.Config.PlatformTags) > 0 {
		return tags.NewStaticProvider(c.Config.PlatformTags)
	}
	return tags.NewInterpreterProvider(c.Config.Python, runner), nil
}

// openResults opens the run history store selected by results.backend.
func (c *CLI) openResults(ctx context.Context) (results.Store, error) {
	switch c.Config.Results.Backend {
	case config.ResultsFile:
		return results.NewFileStore(c.Config.ResultsPath())
	case config.ResultsSQLite:
		return results.OpenSQLite(c.Config.ResultsPath())
	case config.ResultsMongo:
		return results.OpenMongo(ctx, c.Config.Results.MongoURI, c.Config.Results.MongoDatabase)
	default:
		return results.NewNullStore(), nil
	}
}

// pipelineOptions tunes newPipeline.
type pipelineOptions struct {
	outputDir  string
	testOutput io.Writer
}

// newPipeline wires every pipeline collaborator from the loaded config.
// The returned cleanup closes the cache and the history store.
func (c *CLI) newPipeline(ctx context.Context, table *packages.Table, po pipelineOptions) (*pipeline.Pipeline, func(), error) {
	runner := process.NewRunner()

	catalog, backend, err := c.newCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	provider, err := c.newTagProvider(runner)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	store, err := c.openResults(ctx)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("open results store: %w", err)
	}
	cleanup := func() {
		backend.Close()
		store.Close()
	}

	if po.outputDir == "" {
		po.outputDir = c.Config.OutputDir
	}
	t := c.Config.Timeouts
	p, err := pipeline.New(pipeline.Options{
		Packages:    table,
		Resolver:    resolve.New(catalog, provider, c.Logger),
		Fetcher:     fetch.New(nil, c.Logger),
		Provisioner: venv.NewProvisioner(c.Config.Python, runner, c.Logger),
		Installer:   venv.NewInstaller(runner, c.Logger),
		Runner:      runner,
		Results:     store,
		OutputDir:   po.outputDir,
		WorkDir:     c.Config.WorkDir,
		Timeouts: pipeline.Timeouts{
			Download: t.Download,
			Install:  t.Install,
			Test:     t.Test,
			Step:     t.Step,
		},
		TestOutput: po.testOutput,
		Logger:     c.Logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

// validateNames rejects malformed package names before any work starts.
func validateNames(names []string) error {
	for _, n := range names {
		if err := errors.ValidatePythonPackageName(n); err != nil {
			return err
		}
	}
	return nil
}
