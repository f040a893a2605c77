package credentials

import (
	"context"
	"sync"

	"github.com/glorpus-work/fetch/pkg/logger"
	"github.com/glorpus-work/fetch/pkg/model"
	"github.com/sirupsen/logrus"
)

// Chain queries an ordered list of sources until one answers; the first
// non-nil credential wins and later sources are never consulted. The chain
// owns an origin-scoped set of "reported invalid" origins: once an origin is
// reported, sources that can hold stale answers are skipped for it and the
// retry flag is forced so the prompting source can show an "incorrect
// password" indication. Resolving a fresh credential clears the mark, so a
// later rejection starts the protocol over instead of locking the origin out
// of its file and store sources for good.
type Chain struct {
	sources []Source

	mu      sync.Mutex
	invalid map[model.Origin]struct{}
}

// NewChain builds a chain over the given sources in query order. The caller
// decides the composition; the canonical order is netrc file, static config,
// secret store, then the interactive prompt (appended only when the caller
// runs interactively).
func NewChain(sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		invalid: make(map[model.Origin]struct{}),
	}
}

// Resolve walks the sources in order and returns the first answer. When the
// origin was reported invalid before (or retry is set by the caller), sources
// that could repeat the stale answer are skipped and the remaining sources
// see retry=true.
func (c *Chain) Resolve(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error) {
	reported := c.wasReported(origin)
	retry = retry || reported

	for _, source := range c.sources {
		if retry {
			if _, stale := source.(Invalidatable); stale {
				continue
			}
		}
		cred, err := source.Resolve(ctx, origin, retry)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			// A fresh answer supersedes the report; the stale-capable
			// sources are back in play for the next resolution. If this
			// answer is rejected too, ReportInvalid re-marks the origin.
			if reported {
				c.clearReported(origin)
			}
			logger.Debug("credentials resolved", logrus.Fields{
				"origin": origin.String(),
				"user":   cred.Username,
			})
			return cred, nil
		}
	}
	return nil, nil
}

// ReportInvalid marks the origin and forwards the report to exactly the
// sources that could have supplied the stale answer.
func (c *Chain) ReportInvalid(origin model.Origin) {
	c.mu.Lock()
	c.invalid[origin] = struct{}{}
	c.mu.Unlock()

	for _, source := range c.sources {
		if inv, ok := source.(Invalidatable); ok {
			inv.ReportInvalid(origin)
		}
	}
}

func (c *Chain) clearReported(origin model.Origin) {
	c.mu.Lock()
	delete(c.invalid, origin)
	c.mu.Unlock()
}

func (c *Chain) wasReported(origin model.Origin) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.invalid[origin]
	return ok
}
