package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/pkg/packages"
)

// packagesCommand creates the packages command, which lists the package table.
func (c *CLI) packagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the packages that run validates by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := c.loadPackages()
			if err != nil {
				return err
			}
			printPackageTable(table)
			return nil
		},
	}
}

func printPackageTable(t *packages.Table) {
	rows := make([][]string, 0, t.Len())
	for _, name := range t.Names() {
		cfg, _ := t.Lookup(name)
		kind := "wheel"
		if cfg.UseSdist {
			kind = "sdist"
		}
		rows = append(rows, []string{
			name,
			kind,
			cfg.Module(name),
			strings.Join(cfg.TestCommand, " "),
		})
	}
	printTable([]string{"Package", "Artifact", "Import", "Test command"}, rows)
}
