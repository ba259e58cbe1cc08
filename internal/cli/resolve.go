package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/process"
	"github.com/matzehuels/pyvalidate/pkg/resolve"
)

// resolveCommand creates the resolve command, a dry run of artifact selection.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		version string
		sdist   bool
		wheel   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <package>",
		Short: "Show which release file a run would install",
		Long: `Resolve a package against the catalog without downloading anything.

The artifact kind follows the package's use_sdist setting; --sdist and
--wheel override it. Wheels are matched against the interpreter's platform
tags (or the platform_tags setting).`,
		Example: `  pyvalidate resolve requests
  pyvalidate resolve numpy --version 1.26.4 --wheel`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := errors.ValidatePythonPackageName(name); err != nil {
				return err
			}
			if sdist && wheel {
				return errors.New(errors.ErrCodeInvalidInput, "--sdist and --wheel are mutually exclusive")
			}

			table, err := c.loadPackages()
			if err != nil {
				return err
			}
			preferSource := sdist
			if cfg, ok := table.Lookup(name); ok && !wheel {
				preferSource = preferSource || cfg.UseSdist
			}

			ctx := cmd.Context()
			catalog, backend, err := c.newCatalog(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()
			provider, err := c.newTagProvider(process.NewRunner())
			if err != nil {
				return err
			}

			prog := newProgress(c.Logger)
			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Resolving %s...", name))
			spinner.Start()
			art, err := resolve.New(catalog, provider, c.Logger).Resolve(ctx, name, version, preferSource)
			spinner.Stop()
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Resolved %s", name))

			printArtifact(art)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "release version (default: latest)")
	cmd.Flags().BoolVar(&sdist, "sdist", false, "select the source distribution")
	cmd.Flags().BoolVar(&wheel, "wheel", false, "select a compatible wheel")

	return cmd
}

func printArtifact(a *resolve.Artifact) {
	printKeyValue("package", a.Package)
	printKeyValue("version", a.Version)
	printKeyValue("kind", string(a.Kind))
	printKeyValue("file", a.File.Filename)
	printKeyValue("size", strconv.FormatInt(a.File.Size, 10))
	if a.File.Digests.SHA256 != "" {
		printKeyValue("sha256", a.File.Digests.SHA256)
	}
	if a.File.Yanked {
		printWarning("release file is yanked")
	}
	printFile(a.File.URL)
}
