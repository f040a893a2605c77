// Package errors defines the sentinel errors shared across the download
// pipeline and small helpers for wrapping them with context.
package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath    = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath  = fmt.Errorf("invalid config file path")
	ErrConfigParse        = fmt.Errorf("failed to parse config")
	ErrConfigValidation   = fmt.Errorf("invalid configuration")
	ErrConfigEncode       = fmt.Errorf("failed to encode config")
	ErrConfigDirectory    = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate   = fmt.Errorf("failed to create config file")
	ErrConfigFileRename   = fmt.Errorf("failed to rename temporary config file")
	ErrEmptyHostName      = fmt.Errorf("host name cannot be empty")
	ErrDuplicateHost      = fmt.Errorf("host configured twice")
	ErrTimeoutNegative    = fmt.Errorf("http_timeout cannot be negative")
	ErrMaxSizeNegative    = fmt.Errorf("max_download_size cannot be negative")
	ErrChunkSizeInvalid   = fmt.Errorf("chunk_size must be positive")
	ErrConcurrencyInvalid = fmt.Errorf("max_concurrent_downloads must be at least 1")
	ErrInvalidLogLevel    = fmt.Errorf("invalid log level")
	ErrInvalidProxy       = fmt.Errorf("invalid proxy configuration")

	// Download errors.
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrInvalidPath      = fmt.Errorf("invalid path")
	ErrFileHashMismatch = fmt.Errorf("file hash mismatch")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
