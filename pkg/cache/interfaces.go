// Package cache manages the directory of downloaded files: inspecting its
// size and removing stale entries.
package cache

import "time"

// Manager defines the interface for cache management operations.
type Manager interface {
	Clean(options CleanOptions) (*CleanResult, error)
	GetInfo() (*Info, error)
	GetDirectory() string
}

// CleanOptions specifies what to clean from the cache.
type CleanOptions struct {
	// MaxAge removes only files older than the given age. Zero removes
	// everything.
	MaxAge time.Duration
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed   int64
	FilesRemoved int
}

// Info represents cache information.
type Info struct {
	Directory string
	TotalSize int64
	Files     int
	Oldest    time.Time
}
