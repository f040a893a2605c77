package credentials

import (
	"context"
	"sync"

	"github.com/glorpus-work/fetch/pkg/model"
)

// Cache memoizes the answers of an inner Provider per origin, including the
// "no credential available" answer. The critical section is per origin: two
// tasks resolving the same origin at the same time produce exactly one inner
// call and the second task blocks until the first answer is in. Tasks for
// different origins never contend.
type Cache struct {
	inner Provider

	mu      sync.Mutex
	entries map[model.Origin]*cacheEntry
}

type cacheEntry struct {
	mu   sync.Mutex
	done bool
	cred *model.Credential
}

// NewCache wraps inner with per-origin memoization.
func NewCache(inner Provider) *Cache {
	return &Cache{
		inner:   inner,
		entries: make(map[model.Origin]*cacheEntry),
	}
}

// Resolve returns the memoized answer for origin, delegating to the inner
// provider at most once per origin. Errors from the inner provider are not
// memoized, so a failed prompt can be retried by a later download.
func (c *Cache) Resolve(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error) {
	c.mu.Lock()
	entry, ok := c.entries[origin]
	if !ok {
		entry = &cacheEntry{}
		c.entries[origin] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.done {
		return entry.cred, nil
	}

	cred, err := c.inner.Resolve(ctx, origin, retry)
	if err != nil {
		return nil, err
	}
	entry.cred = cred
	entry.done = true
	return cred, nil
}

// ReportInvalid evicts the memoized entry for origin and forwards the report
// to the inner provider so the next Resolve re-runs the chain.
func (c *Cache) ReportInvalid(origin model.Origin) {
	c.mu.Lock()
	delete(c.entries, origin)
	c.mu.Unlock()

	c.inner.ReportInvalid(origin)
}
