// Package config provides configuration management for the fetch download
// library and its CLI. It handles loading, validating and saving YAML
// configuration files and provides sensible defaults.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/fetch/pkg/errors"
	"github.com/glorpus-work/fetch/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	// Per-host authentication configuration
	Hosts []*HostConfig `yaml:"hosts"`

	// General settings
	Settings Settings `yaml:"settings"`
}

// HostConfig carries static authentication material for one host.
type HostConfig struct {
	Host string      `yaml:"host"`
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	// Credential sources
	NetrcPath   string `yaml:"netrc_path,omitempty"` // empty means ~/.netrc
	Interactive bool   `yaml:"interactive"`          // allow prompting for credentials

	// Network settings
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	UserAgent         string        `yaml:"user_agent,omitempty"`
	RequestsPerSecond int           `yaml:"requests_per_second,omitempty"` // 0 disables throttling

	// Transfer settings
	MaxDownloadSize int64 `yaml:"max_download_size"` // bytes; 0 means no cap
	ChunkSize       int64 `yaml:"chunk_size"`
	MaxConcurrent   int   `yaml:"max_concurrent_downloads"`

	// Cache settings
	CacheDir string `yaml:"cache_dir,omitempty"`

	// Output settings
	LogLevel string `yaml:"log_level"` // panic, fatal, error, warn, info, debug, trace
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultChunkSize is the default streaming chunk size.
	DefaultChunkSize = int64(32 * 1024)

	// DefaultMaxConcurrent is the default maximum number of concurrent downloads.
	DefaultMaxConcurrent = 5

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Hosts: []*HostConfig{},
		Settings: Settings{
			HTTPTimeout:   DefaultHTTPTimeout,
			ChunkSize:     DefaultChunkSize,
			MaxConcurrent: DefaultMaxConcurrent,
			LogLevel:      "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults, not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return &config, nil
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	// Atomically replace the config file
	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return data, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Settings.ChunkSize == 0 {
		c.Settings.ChunkSize = DefaultChunkSize
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateHosts(c.Hosts); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func validateHosts(hosts []*HostConfig) error {
	seen := make(map[string]bool)
	for _, host := range hosts {
		// A bare "-" sequence entry decodes to a nil *HostConfig.
		if host == nil || host.Host == "" {
			return errors.ErrEmptyHostName
		}
		key := strings.ToLower(host.Host)
		if seen[key] {
			return errors.Wrapf(errors.ErrDuplicateHost, "host %s", host.Host)
		}
		seen[key] = true
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errors.ErrTimeoutNegative
	}
	if s.MaxDownloadSize < 0 {
		return errors.ErrMaxSizeNegative
	}
	if s.ChunkSize < 1 {
		return errors.ErrChunkSizeInvalid
	}
	if s.MaxConcurrent < 1 {
		return errors.ErrConcurrencyInvalid
	}
	validLevels := map[string]bool{
		"panic": true, "fatal": true, "error": true,
		"warn": true, "info": true, "debug": true, "trace": true,
	}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.Wrapf(errors.ErrInvalidLogLevel, "%q", s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config dir")
	}
	return filepath.Join(configDir, "fetch", "config.yaml"), nil
}
