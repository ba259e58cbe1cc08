package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/results"
)

// historyCommand creates the history command, which lists recorded runs.
func (c *CLI) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [package]",
		Short: "List recorded validation runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f results.Filter
			if len(args) == 1 {
				if err := errors.ValidatePythonPackageName(args[0]); err != nil {
					return err
				}
				f.Package = args[0]
			}
			f.Limit = limit

			ctx := cmd.Context()
			store, err := c.openResults(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(ctx, f)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				printInfo("No recorded runs")
				return nil
			}
			printHistory(records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	return cmd
}

func printHistory(records []results.Record) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		outcome := StyleSuccess.Render(string(r.Status))
		if !r.Passed() {
			outcome = StyleError.Render(string(r.Status) + " " + r.ErrorCode)
		}
		lines := "-"
		if r.Passed() {
			lines = formatRate(r.LineRate)
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Package,
			r.Version,
			outcome,
			lines,
			r.Duration.Round(time.Second).String(),
		})
	}
	printTable([]string{"Started", "Package", "Version", "Status", "Lines", "Duration"}, rows)
}
