package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/internal/server"
)

// serveCommand creates the serve command, which publishes collected coverage
// reports and run history over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve coverage reports and run history over HTTP",
		Long: `Serve the coverage reports collected by run.

Routes:
  GET /healthz                          liveness check
  GET /api/packages                     packages with a collected report
  GET /api/runs?package=NAME&limit=N    recorded runs, newest first
  GET /reports/{package}/               HTML coverage report
  GET /reports/{package}/coverage.xml   Cobertura XML report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}
			if outputDir == "" {
				outputDir = c.Config.OutputDir
			}

			ctx := cmd.Context()
			store, err := c.openResults(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			printInfo("Serving %s on %s", outputDir, StyleLink.Render("http://"+addr))
			return server.New(outputDir, store, c.Logger).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "coverage report directory (default from config)")

	return cmd
}
