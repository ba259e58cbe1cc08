package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pyvalidate/internal/config"
	"github.com/matzehuels/pyvalidate/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the catalog response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached catalog responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch c.Config.Catalog.Cache {
			case config.CacheFile:
				fc, err := cache.NewFileCache(c.Config.CacheDir())
				if err != nil {
					return fmt.Errorf("open cache: %w", err)
				}
				n, err := fc.Clear()
				if err != nil {
					return err
				}
				printSuccess("Cleared %d cached entries", n)
				printDetail("Directory: %s", fc.Dir())
			case config.CacheRedis:
				rc, err := cache.NewRedisCache(ctx, c.Config.Catalog.RedisURL)
				if err != nil {
					return fmt.Errorf("open cache: %w", err)
				}
				defer rc.Close()
				n, err := rc.Clear(ctx)
				if err != nil {
					return err
				}
				printSuccess("Cleared %d cached entries", n)
			default:
				printInfo("Catalog cache is disabled")
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where cached catalog responses are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch c.Config.Catalog.Cache {
			case config.CacheRedis:
				fmt.Fprintln(stdout, redactURL(c.Config.Catalog.RedisURL))
			default:
				fmt.Fprintln(stdout, c.Config.CacheDir())
			}
			return nil
		},
	}
}

// redactURL hides the password of a connection URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
