package auth

import (
	"net/http"
	"strings"
)

// Transport is an http.RoundTripper that attaches a host-matched
// Authenticator to outgoing requests. It carries the static token-style
// authentication (header, bearer) configured per host; basic entries flow
// through the credential resolution chain instead, so the unauthenticated
// first attempt and the retry protocol stay intact.
type Transport struct {
	byHost map[string]Authenticator
	next   http.RoundTripper
}

// NewTransport wraps next with per-host authentication. Host keys are matched
// case-insensitively against the request URL's hostname. A nil next uses
// http.DefaultTransport.
func NewTransport(byHost map[string]Authenticator, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	hosts := make(map[string]Authenticator, len(byHost))
	for host, authenticator := range byHost {
		hosts[strings.ToLower(host)] = authenticator
	}
	return &Transport{byHost: hosts, next: next}
}

// RoundTrip applies the matching authenticator, if any, to a clone of the
// request. The caller's request is never mutated.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	authenticator, ok := t.byHost[strings.ToLower(req.URL.Hostname())]
	if !ok {
		return t.next.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if err := authenticator.Apply(clone); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(clone)
}
