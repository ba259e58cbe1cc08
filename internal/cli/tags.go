package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/pkg/process"
)

// tagsCommand creates the tags command, which prints the platform tags used
// to match wheels.
func (c *CLI) tagsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Print the platform tags used for wheel selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := c.newTagProvider(process.NewRunner())
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(cmd.Context(), "Querying interpreter...")
			spinner.Start()
			set, err := provider.Tags(cmd.Context())
			spinner.Stop()
			if err != nil {
				return err
			}

			list := set.Strings()
			shown := list
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			for _, t := range shown {
				fmt.Fprintln(stdout, t)
			}
			if len(shown) < len(list) {
				printDetail("%d of %d tags shown (use --limit 0 for all)", len(shown), len(list))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum tags to print (0 for all)")

	return cmd
}
