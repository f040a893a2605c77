//go:generate mockgen -destination=./mocks/download.go -package=mocks . Manager

// Package download fetches remote resources over HTTP with negotiated
// authentication, size verification and cooperative cancellation. Task is the
// single-download state machine; Manager batches tasks into files with
// de-duplication and checksum verification.
package download

import (
	"context"
	"net/url"
)

// Manager is the file-oriented API on top of Task used by CLI tools and
// daemons that fetch into a cache directory.
type Manager interface {
	// FetchAll downloads all items, respecting Options (e.g., concurrency and
	// target dir). It returns a map from Item.ID to absolute local file path.
	FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error)

	// Fetch downloads a single item to a deterministic location within
	// opts.Dir and returns the absolute local file path.
	Fetch(ctx context.Context, item Item, opts Options) (string, error)
}

// Item represents one remote resource to download.
type Item struct {
	ID       string   // stable identifier; must be unique within a batch
	URL      *url.URL // source URL to download
	Size     int64    // expected size in bytes; 0 or model.UnknownSize when unknown
	Checksum string   // optional hex-encoded SHA-256 checksum; verified when set
	Filename string   // optional preferred filename; derived when empty
}

// Options control the behavior of the download manager.
type Options struct {
	Dir         string // destination directory. Must be absolute.
	Concurrency int    // number of parallel downloads; if <=0, a sane default is used
}
