package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThrottledTransportValidation(t *testing.T) {
	_, err := NewThrottledTransport(0, 1, nil)
	require.Error(t, err)

	_, err = NewThrottledTransport(1, 0, nil)
	require.Error(t, err)

	rt, err := NewThrottledTransport(10, 1, nil)
	require.NoError(t, err)
	require.NotNil(t, rt)
}

func TestThrottledTransportPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rt, err := NewThrottledTransport(100, 10, nil)
	require.NoError(t, err)

	client := &http.Client{Transport: rt, Timeout: time.Second}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestThrottledTransportHonorsContext(t *testing.T) {
	// Burst 1 at 1 rps: the second immediate request has to wait and must
	// observe the cancelled context instead.
	rt, err := NewThrottledTransport(1, 1, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: rt}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)

	_, err = client.Do(req) //nolint:bodyclose // the request never goes out
	require.Error(t, err)
}
