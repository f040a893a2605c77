package cache

import (
	"fmt"
	"time"

	"github.com/glorpus-work/fetch/pkg/logger"
)

// CacheOperation wraps a Manager with human-readable output for the CLI.
type CacheOperation struct {
	manager Manager
}

// NewCacheOperation creates a new cache operation instance.
func NewCacheOperation(manager Manager) *CacheOperation {
	return &CacheOperation{
		manager: manager,
	}
}

// Clean cleans the cache and returns a human-readable result message.
func (op *CacheOperation) Clean(maxAge time.Duration) (string, error) {
	logger.Debug("Cleaning cache", logger.Fields{"max_age": maxAge})

	result, err := op.manager.Clean(CleanOptions{MaxAge: maxAge})
	if err != nil {
		return "", fmt.Errorf("failed to clean cache: %w", err)
	}

	if result.FilesRemoved == 0 {
		return "No files were removed from the cache.", nil
	}
	return fmt.Sprintf("Removed %d files, freed %s of disk space.",
		result.FilesRemoved, formatBytes(result.TotalFreed)), nil
}

// GetInfo returns a human-readable description of the cache.
func (op *CacheOperation) GetInfo() (string, error) {
	info, err := op.manager.GetInfo()
	if err != nil {
		return "", fmt.Errorf("failed to get cache info: %w", err)
	}

	oldest := "n/a"
	if !info.Oldest.IsZero() {
		oldest = info.Oldest.Format(time.RFC1123)
	}

	return fmt.Sprintf(`Cache Information:
  Directory:  %s
  Total Size: %s
  Files:      %d
  Oldest:     %s`,
		info.Directory,
		formatBytes(info.TotalSize),
		info.Files,
		oldest,
	), nil
}

// GetDirectory returns the cache directory path.
func (op *CacheOperation) GetDirectory() string {
	return op.manager.GetDirectory()
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
