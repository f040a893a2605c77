package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glorpus-work/fetch/pkg/credentials"
	pkgerrors "github.com/glorpus-work/fetch/pkg/errors"
	"github.com/glorpus-work/fetch/pkg/fsutil"
	"github.com/glorpus-work/fetch/pkg/logger"
)

// ManagerImpl is an HTTP download manager running one Task per item, with
// optional checksum verification and basic de-duplication. Every fetch gets
// the full authentication, size-verification and cancellation semantics of
// Task; the shared credential resolver makes concurrent fetches against the
// same origin resolve (and prompt) at most once.
type ManagerImpl struct {
	client    *http.Client
	userAgent string
	resolver  credentials.Provider
	maxSize   int64
	chunkSize int64
}

// ManagerOption configures a ManagerImpl.
type ManagerOption func(*ManagerImpl)

// WithManagerResolver sets the shared credential resolver handed to every
// task. Typically a Chain wrapped in a Cache.
func WithManagerResolver(resolver credentials.Provider) ManagerOption {
	return func(m *ManagerImpl) { m.resolver = resolver }
}

// WithManagerMaxSize caps every individual transfer. Zero means no cap.
func WithManagerMaxSize(size int64) ManagerOption {
	return func(m *ManagerImpl) { m.maxSize = size }
}

// WithManagerChunkSize sets the streaming chunk size of every task.
func WithManagerChunkSize(size int64) ManagerOption {
	return func(m *ManagerImpl) { m.chunkSize = size }
}

// WithManagerTransport replaces the transport, e.g. with NewThrottledTransport
// or one carrying a proxy configuration.
func WithManagerTransport(transport http.RoundTripper) ManagerOption {
	return func(m *ManagerImpl) { m.client.Transport = transport }
}

// NewManager creates a new download manager with the given timeout and user agent.
func NewManager(timeout time.Duration, userAgent string, opts ...ManagerOption) *ManagerImpl {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	m := &ManagerImpl{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchAll downloads multiple items concurrently and returns a map of item IDs to downloaded file paths.
func (m *ManagerImpl) FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = max(2, runtime.NumCPU()/2)
	}
	if opts.Dir == "" || !filepath.IsAbs(opts.Dir) {
		return nil, fmt.Errorf("download dir must be absolute: %w: %s", pkgerrors.ErrInvalidPath, opts.Dir)
	}
	if err := os.MkdirAll(opts.Dir, fsutil.DirModeSecure); err != nil {
		return nil, pkgerrors.Wrap(err, "could not create download dir")
	}

	byURL, err := buildURLIndex(items)
	if err != nil {
		return nil, err
	}
	results, err := m.runDownloadWorkers(ctx, items, byURL, opts)
	if err != nil {
		return nil, err
	}
	return mapResultsByID(items, results), nil
}

// Fetch downloads a single item and returns the path to the downloaded file.
func (m *ManagerImpl) Fetch(ctx context.Context, item Item, opts Options) (string, error) {
	if opts.Dir == "" || !filepath.IsAbs(opts.Dir) {
		return "", fmt.Errorf("download dir must be absolute: %s: %w", opts.Dir, pkgerrors.ErrInvalidPath)
	}
	if err := os.MkdirAll(opts.Dir, fsutil.DirModeSecure); err != nil {
		return "", pkgerrors.Wrap(err, "could not create download dir")
	}
	return m.fetchOne(ctx, item, opts)
}

// buildURLIndex groups item indices by URL. Items sharing a URL are fetched
// once, so their per-file settings must agree; a batch mixing different
// checksums, filenames or sizes for one URL is rejected rather than silently
// served from whichever item came first.
func buildURLIndex(items []Item) (map[string][]int, error) {
	byURL := make(map[string][]int)
	for i, it := range items {
		if it.URL == nil {
			return nil, fmt.Errorf("item %d has nil URL: %w", i, pkgerrors.ErrDownloadFailed)
		}
		key := it.URL.String()
		if prev, ok := byURL[key]; ok {
			first := items[prev[0]]
			if it.Checksum != first.Checksum || it.Filename != first.Filename || it.Size != first.Size {
				return nil, fmt.Errorf("conflicting settings for duplicate URL %s: %w", key, pkgerrors.ErrDownloadFailed)
			}
		}
		byURL[key] = append(byURL[key], i)
	}
	return byURL, nil
}

func mapResultsByID(items []Item, results []string) map[string]string {
	out := make(map[string]string, len(items))
	for i, it := range items {
		out[it.ID] = results[i]
	}
	return out
}

func (m *ManagerImpl) runDownloadWorkers(ctx context.Context, items []Item, byURL map[string][]int, opts Options) ([]string, error) {
	results := make([]string, len(items))
	var firstErr error
	var mu sync.Mutex

	tasks := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for urlStr := range tasks {
				idx := byURL[urlStr][0]
				path, err := m.fetchOne(ctx, items[idx], opts)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					for _, i := range byURL[urlStr] {
						results[i] = ""
					}
					mu.Unlock()
					continue
				}
				for _, i := range byURL[urlStr] {
					results[i] = path
				}
				mu.Unlock()
			}
		}()
	}

	for _, urlStr := range rangeKeys(byURL) {
		tasks <- urlStr
	}
	close(tasks)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (m *ManagerImpl) fetchOne(ctx context.Context, item Item, opts Options) (string, error) {
	if item.URL == nil {
		return "", fmt.Errorf("nil URL: %w", pkgerrors.ErrDownloadFailed)
	}
	filename := selectFilename(item)
	absPath := filepath.Join(opts.Dir, filename)
	if reuse, ok := tryReuseExisting(absPath, item.Checksum); ok {
		return reuse, nil
	}

	tmpPath, err := m.downloadToTemp(ctx, item, absPath)
	if err != nil {
		return "", err
	}
	if item.Checksum != "" {
		ok, err := verifySHA256(tmpPath, item.Checksum)
		if err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
		if !ok {
			_ = os.Remove(tmpPath)
			return "", fmt.Errorf("checksum mismatch for %s: %w", item.URL, pkgerrors.ErrFileHashMismatch)
		}
	}
	if err := finalizeFile(tmpPath, absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

// downloadToTemp runs a Task writing into a temp file next to absPath and
// returns the temp path. The temp file is removed on failure.
func (m *ManagerImpl) downloadToTemp(ctx context.Context, item Item, absPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeSecure); err != nil {
		return "", pkgerrors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "dl-*.tmp")
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	taskOpts := []TaskOption{
		WithClient(m.client),
		WithUserAgent(m.userAgent),
		WithMaxSize(m.maxSize),
		WithChunkSize(m.chunkSize),
	}
	if m.resolver != nil {
		taskOpts = append(taskOpts, WithResolver(m.resolver))
	}
	if item.Size > 0 {
		taskOpts = append(taskOpts, WithExpectedSize(item.Size))
	}

	task, err := NewTask(item.URL, tmp, taskOpts...)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}

	logger.Debug("fetching item", logrus.Fields{
		"task":   task.ID().String(),
		"source": item.URL.String(),
	})

	if err := task.Execute(ctx); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not close file")
	}
	return tmpPath, nil
}

func selectFilename(item Item) string {
	if item.Filename != "" {
		return item.Filename
	}
	if item.Checksum != "" {
		return item.Checksum
	}
	h := sha256.Sum256([]byte(item.URL.String()))
	return hex.EncodeToString(h[:])
}

func tryReuseExisting(absPath, checksum string) (string, bool) {
	if st, err := os.Stat(absPath); err == nil && st.Size() > 0 {
		if checksum == "" {
			return absPath, true
		}
		ok, err := verifySHA256(absPath, checksum)
		if err == nil && ok {
			return absPath, true
		}
	}
	return "", false
}

func finalizeFile(tmpPath, absPath string) error {
	if err := fsutil.Move(tmpPath, absPath); err != nil {
		return pkgerrors.Wrap(err, "could not finalize file")
	}
	if err := os.Chmod(absPath, fsutil.FileModeSecure); err != nil {
		return pkgerrors.Wrap(err, "could not set permissions")
	}
	return nil
}

func verifySHA256(path string, wantHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, pkgerrors.Wrap(err, "hashing")
	}
	got := hex.EncodeToString(h.Sum(nil))
	return got == normalizeHex(wantHex), nil
}

func normalizeHex(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func rangeKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
