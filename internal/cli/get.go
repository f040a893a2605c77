package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/fetch/pkg/config"
	"github.com/glorpus-work/fetch/pkg/download"
	"github.com/glorpus-work/fetch/pkg/logger"
)

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	var (
		dir          string
		output       string
		checksum     string
		expectedSize int64
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "get URL [URL...]",
		Short: "Download one or more files",
		Long: `Download files over HTTP or HTTPS.

Credentials are resolved per origin from the configuration, the netrc file
and, when interactive mode is enabled, a terminal prompt. Downloads with a
checksum are verified and reused on subsequent runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args, getOptions{
				dir:          dir,
				output:       output,
				checksum:     checksum,
				expectedSize: expectedSize,
				concurrency:  concurrency,
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Destination directory (default: configured cache dir, else current directory)")
	cmd.Flags().StringVarP(&output, "output", "O", "", "Destination filename (single URL only)")
	cmd.Flags().StringVar(&checksum, "sha256", "", "Expected SHA-256 hex digest (single URL only)")
	cmd.Flags().Int64Var(&expectedSize, "expected-size", 0, "Expected file size in bytes (single URL only)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of parallel downloads (0 uses the configured default)")

	return cmd
}

type getOptions struct {
	dir          string
	output       string
	checksum     string
	expectedSize int64
	concurrency  int
}

func runGet(cmd *cobra.Command, urls []string, opts getOptions) error {
	if len(urls) > 1 && (opts.output != "" || opts.checksum != "" || opts.expectedSize != 0) {
		return fmt.Errorf("--output, --sha256 and --expected-size apply to a single URL only")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager, err := newDownloadManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create download manager: %w", err)
	}

	dir, err := resolveDir(cfg, opts.dir)
	if err != nil {
		return err
	}

	items := make([]download.Item, 0, len(urls))
	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() {
			return fmt.Errorf("invalid URL %q", raw)
		}
		items = append(items, download.Item{
			ID:       raw,
			URL:      parsed,
			Size:     opts.expectedSize,
			Checksum: opts.checksum,
			Filename: opts.output,
		})
	}

	concurrency := opts.concurrency
	if concurrency == 0 {
		concurrency = cfg.Settings.MaxConcurrent
	}

	results, err := manager.FetchAll(cmd.Context(), items, download.Options{Dir: dir, Concurrency: concurrency})
	if err != nil {
		return err
	}

	for _, item := range items {
		logger.Info("Downloaded", logger.Fields{"url": item.ID, "path": results[item.ID]})
	}
	return nil
}

// resolveDir picks the destination directory: the flag wins, then the
// configured cache directory, then the current working directory.
func resolveDir(cfg *config.Config, dir string) (string, error) {
	if dir == "" {
		dir = cfg.Settings.CacheDir
	}
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid directory %q: %w", dir, err)
	}
	return abs, nil
}
