package download

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// throttledTransport is an http.RoundTripper restricting outbound requests
// with a token bucket. Shared by all tasks created from one Manager so a
// large batch cannot hammer a mirror.
type throttledTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

// NewThrottledTransport wraps next so that at most rps requests per second
// are dispatched, allowing bursts up to burst.
func NewThrottledTransport(rps, burst int, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps (%d) and burst (%d) must be positive", rps, burst)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &throttledTransport{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		next:    next,
	}, nil
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return t.next.RoundTrip(req)
}
