// Package cli implements the commands of the fetch command line tool.
package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/glorpus-work/fetch/pkg/auth"
	"github.com/glorpus-work/fetch/pkg/config"
	"github.com/glorpus-work/fetch/pkg/credentials"
	"github.com/glorpus-work/fetch/pkg/download"
	"github.com/glorpus-work/fetch/pkg/logger"
)

// These variables will be set by the main package.
var (
	ConfigPath *string
	Verbose    *bool
	NoColor    *bool
)

// loadConfig loads the configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Settings.LogLevel
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	noColor := NoColor != nil && *NoColor
	logger.InitLogger(level, noColor)

	return cfg, nil
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		// An empty path produces a descriptive error once the config is
		// actually read or written.
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// buildResolver wires the credential chain from the configuration: the netrc
// file first, then static per-host entries, then an interactive prompt when
// enabled. The chain is wrapped in a cache so each origin is resolved at most
// once per run.
func buildResolver(cfg *config.Config) credentials.Provider {
	var sources []credentials.Source

	sources = append(sources, credentials.NewNetrcSource(cfg.Settings.NetrcPath))
	if static := cfg.StaticCredentials(); static != nil {
		sources = append(sources, credentials.NewStaticSource(static))
	}
	if cfg.Settings.Interactive {
		sources = append(sources, credentials.NewPromptSource(newTerminalPrompter(os.Stdin, os.Stderr)))
	}

	return credentials.NewCache(credentials.NewChain(sources...))
}

// newDownloadManager is swapped out in tests.
var newDownloadManager = func(cfg *config.Config) (download.Manager, error) {
	return buildManager(cfg)
}

// buildManager constructs the download manager from the configuration,
// including the proxy and throttling transport when configured.
func buildManager(cfg *config.Config) (*download.ManagerImpl, error) {
	var transport http.RoundTripper

	proxyFn, err := config.ProxyFunc()
	if err != nil {
		return nil, err
	}
	if proxyFn != nil {
		transport = &http.Transport{Proxy: proxyFn}
	}

	if tokenAuth := tokenAuthenticators(cfg); len(tokenAuth) > 0 {
		transport = auth.NewTransport(tokenAuth, transport)
	}

	if cfg.Settings.RequestsPerSecond > 0 {
		transport, err = download.NewThrottledTransport(cfg.Settings.RequestsPerSecond, cfg.Settings.RequestsPerSecond, transport)
		if err != nil {
			return nil, err
		}
	}

	opts := []download.ManagerOption{
		download.WithManagerResolver(buildResolver(cfg)),
		download.WithManagerChunkSize(cfg.Settings.ChunkSize),
	}
	if cfg.Settings.MaxDownloadSize > 0 {
		opts = append(opts, download.WithManagerMaxSize(cfg.Settings.MaxDownloadSize))
	}
	if transport != nil {
		opts = append(opts, download.WithManagerTransport(transport))
	}

	return download.NewManager(cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent, opts...), nil
}

// tokenAuthenticators extracts the header and bearer entries from the config.
// Basic entries are excluded: those go through the credential chain so the
// first attempt stays unauthenticated and rejections are reported back.
func tokenAuthenticators(cfg *config.Config) map[string]auth.Authenticator {
	tokenAuth := make(map[string]auth.Authenticator)
	for host, authenticator := range cfg.ToAuthMap() {
		if authenticator.Type() == auth.BasicAuthType {
			continue
		}
		tokenAuth[host] = authenticator
	}
	return tokenAuth
}
