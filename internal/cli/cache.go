package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/fetch/pkg/cache"
	"github.com/glorpus-work/fetch/pkg/config"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the download cache",
		Long:  "Inspect and clean the directory of downloaded files",
	}

	cmd.AddCommand(
		newCacheInfoCmd(),
		newCacheCleanCmd(),
	)

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		RunE:  runCacheInfo,
	}
}

func newCacheCleanCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove downloaded files from the cache",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCacheClean(maxAge)
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Only remove files older than this (e.g. 72h); 0 removes everything")

	return cmd
}

func runCacheInfo(*cobra.Command, []string) error {
	op, err := loadCacheOperation()
	if err != nil {
		return err
	}

	info, err := op.GetInfo()
	if err != nil {
		return err
	}

	fmt.Println(info)
	return nil
}

func runCacheClean(maxAge time.Duration) error {
	op, err := loadCacheOperation()
	if err != nil {
		return err
	}

	msg, err := op.Clean(maxAge)
	if err != nil {
		return err
	}

	fmt.Println(msg)
	return nil
}

func loadCacheOperation() (*cache.CacheOperation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	manager, err := cacheManager(cfg)
	if err != nil {
		return nil, err
	}
	return cache.NewCacheOperation(manager), nil
}

func cacheManager(cfg *config.Config) (*cache.DefaultManager, error) {
	if cfg.Settings.CacheDir != "" {
		return cache.NewManager(cfg.Settings.CacheDir), nil
	}
	return cache.NewDefaultManager()
}
