package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runCommand creates the run command for validating packages.
func (c *CLI) runCommand() *cobra.Command {
	var (
		outputDir  string
		testOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run [packages...]",
		Short: "Build, install, and test packages from PyPI",
		Long: `Run the validation pipeline for each named package, or for every package
in the configuration table when none are given.

Packages run one at a time. A failing package does not stop the batch; the
command exits non-zero when any package failed.`,
		Example: `  pyvalidate run
  pyvalidate run requests flask
  pyvalidate run numpy --output ./reports --test-output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateNames(args); err != nil {
				return err
			}
			table, err := c.loadPackages()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = table.Names()
			}

			ctx := cmd.Context()
			po := pipelineOptions{outputDir: outputDir}
			if testOutput {
				po.testOutput = os.Stderr
			}
			p, cleanup, err := c.newPipeline(ctx, table, po)
			if err != nil {
				return err
			}
			defer cleanup()

			batch := p.RunBatch(ctx, names)
			printBatchSummary(batch)

			if err := ctx.Err(); err != nil {
				return err
			}
			if !batch.OK() {
				return fmt.Errorf("%d of %d packages failed", len(batch.Failed()), len(batch.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "coverage report directory (default from config)")
	cmd.Flags().BoolVar(&testOutput, "test-output", false, "stream test command output to stderr")

	return cmd
}
