package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/fetch/pkg/errors"
	"github.com/glorpus-work/fetch/pkg/fsutil"
)

// DefaultManager implements the Manager interface for cache operations.
type DefaultManager struct {
	directory string
}

// NewManager creates a new cache manager for the given directory.
func NewManager(directory string) *DefaultManager {
	return &DefaultManager{
		directory: directory,
	}
}

// NewDefaultManager creates a new cache manager with the default directory.
func NewDefaultManager() (*DefaultManager, error) {
	cacheDir, err := fsutil.GetCacheDir()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get user cache directory")
	}

	if err := os.MkdirAll(cacheDir, fsutil.DirModePrivate); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory")
	}

	return NewManager(cacheDir), nil
}

// Clean removes downloaded files according to the specified options.
func (cm *DefaultManager) Clean(options CleanOptions) (*CleanResult, error) {
	entries, err := os.ReadDir(cm.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return &CleanResult{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache directory %s", cm.directory)
	}

	cutoff := time.Time{}
	if options.MaxAge > 0 {
		cutoff = time.Now().Add(-options.MaxAge)
	}

	result := &CleanResult{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat cache entry %s", entry.Name())
		}
		if !cutoff.IsZero() && info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(cm.directory, entry.Name())); err != nil {
			return nil, errors.Wrapf(err, "failed to remove cache entry %s", entry.Name())
		}
		result.TotalFreed += info.Size()
		result.FilesRemoved++
	}

	return result, nil
}

// GetInfo returns information about the cache.
func (cm *DefaultManager) GetInfo() (*Info, error) {
	info := &Info{Directory: cm.directory}

	entries, err := os.ReadDir(cm.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache directory %s", cm.directory)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat cache entry %s", entry.Name())
		}
		info.TotalSize += fi.Size()
		info.Files++
		if info.Oldest.IsZero() || fi.ModTime().Before(info.Oldest) {
			info.Oldest = fi.ModTime()
		}
	}

	return info, nil
}

// GetDirectory returns the cache directory path.
func (cm *DefaultManager) GetDirectory() string {
	return cm.directory
}
