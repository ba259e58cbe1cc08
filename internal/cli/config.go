package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/internal/config"
)

// configCommand creates the config inspection command. Its subcommands do
// not load the layered config, so they still work when a file in it is broken.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration files",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	cmd.AddCommand(c.configPathCommand())
	cmd.AddCommand(c.configCheckCommand())

	return cmd
}

// configPathCommand creates the "config path" subcommand.
func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config files read, lowest precedence first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user := config.UserConfigPath()
			if _, err := os.Stat(user); err != nil {
				user += " (not found)"
			}
			printKeyValue("user", user)

			project := config.ProjectConfigPath()
			if project == "" {
				project = "(none)"
			}
			printKeyValue("project", project)

			if c.configPath != "" {
				printKeyValue("explicit", c.configPath)
			}
			return nil
		},
	}
}

// configCheckCommand creates the "config check" subcommand.
func (c *CLI) configCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate one config file on its own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromPath(args[0])
			if err != nil {
				return err
			}
			printSuccess("%s is valid", args[0])
			printDetail("Catalog: %s (cache %s)", cfg.Catalog.URL, cfg.Catalog.Cache)
			printDetail("Results: %s", cfg.Results.Backend)
			return nil
		},
	}
}
