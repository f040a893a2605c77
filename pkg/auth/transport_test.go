package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportAppliesMatchingAuthenticator(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	srvURL, err := url.Parse(srv.URL)
	require.NoError(t, err)

	client := &http.Client{
		Timeout: time.Second,
		Transport: NewTransport(map[string]Authenticator{
			srvURL.Hostname(): &BearerAuth{Token: "tok"},
		}, nil),
	}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
}

// roundTripFunc lets a test stand in for the next transport.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestTransportHostMatchIsCaseInsensitive(t *testing.T) {
	var got http.Header
	next := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	rt := NewTransport(map[string]Authenticator{
		"EXAMPLE.COM": &HeaderAuth{Headers: map[string]string{"X-Token": "abc"}},
	}, next)

	req, err := http.NewRequest(http.MethodGet, "http://example.com/file.bin", http.NoBody)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "abc", got.Get("X-Token"))
}

func TestTransportLeavesOtherHostsUntouched(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{
		Timeout: time.Second,
		Transport: NewTransport(map[string]Authenticator{
			"other.example.com": &BearerAuth{Token: "tok"},
		}, nil),
	}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, got.Get("Authorization"))
}

func TestTransportDoesNotMutateCallerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	srvURL, err := url.Parse(srv.URL)
	require.NoError(t, err)

	rt := NewTransport(map[string]Authenticator{
		srvURL.Hostname(): &BearerAuth{Token: "tok"},
	}, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, req.Header.Get("Authorization"))
}
