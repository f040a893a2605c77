package download_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/fetch/pkg/credentials/mocks"
	"github.com/glorpus-work/fetch/pkg/download"
	"github.com/glorpus-work/fetch/pkg/model"
)

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u
}

func serverOrigin(t *testing.T, srv *httptest.Server) model.Origin {
	t.Helper()
	return model.OriginOf(mustParse(t, srv.URL))
}

// safeBuffer serializes writes so the test can read it after cancellation.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTaskExpectedSizeMatches(t *testing.T) {
	payload := strings.Repeat("x", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink, download.WithExpectedSize(100))
	require.NoError(t, err)

	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, model.StateCompleted, task.State())
	assert.Equal(t, int64(100), task.Progress().Processed)
	assert.Equal(t, int64(100), task.Progress().Total)
	assert.Equal(t, payload, sink.String())
}

func TestTaskAdoptsServerContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	var totals []int64
	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink,
		download.WithProgressFunc(func(p model.Progress) { totals = append(totals, p.Total) }))
	require.NoError(t, err)

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, int64(11), task.Progress().Total)
	require.NotEmpty(t, totals)
	assert.Equal(t, int64(11), totals[0])
}

func TestTaskDeclaredLengthDisagrees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "50")
		_, _ = w.Write([]byte(strings.Repeat("x", 50)))
	}))
	defer srv.Close()

	var states []model.State
	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink,
		download.WithExpectedSize(100),
		download.WithStateFunc(func(s model.State) { states = append(states, s) }))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsSizeMismatch(err))
	assert.Equal(t, model.StateFailed, task.State())
	// Failure happens on header verification, before any streaming.
	assert.NotContains(t, states, model.StateData)
	assert.Zero(t, sink.Len())

	var mismatch *download.SizeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(100), mismatch.Want)
	assert.Equal(t, int64(50), mismatch.Got)
}

func TestTaskDeclaredLengthExceedsCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "200")
		_, _ = w.Write([]byte(strings.Repeat("x", 200)))
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink, download.WithMaxSize(100))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsSizeMismatch(err))
	assert.Zero(t, sink.Len())
}

func TestTaskTransferExceedsCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Chunked response: no Content-Length for the header check to catch.
		flusher := w.(http.Flusher)
		for i := 0; i < 20; i++ {
			_, _ = w.Write([]byte(strings.Repeat("x", 10)))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink,
		download.WithMaxSize(100), download.WithChunkSize(10))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsSizeMismatch(err))
	assert.Equal(t, model.StateFailed, task.State())
}

func TestTaskShortBodyAgainstDeclaredLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte(strings.Repeat("x", 50)))
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink)
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsSizeMismatch(err))
}

func TestTaskAuthRetrySucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)

	var unauthenticated, authenticated int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			unauthenticated++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "alice", user)
		require.Equal(t, "secret", pass)
		authenticated++
		_, _ = w.Write([]byte("private data"))
	}))
	defer srv.Close()

	resolver := mocks.NewMockProvider(ctrl)
	resolver.EXPECT().
		Resolve(gomock.Any(), serverOrigin(t, srv), false).
		Return(&model.Credential{Username: "alice", Password: "secret"}, nil).
		Times(1)
	// ReportInvalid must never be called on success.

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink, download.WithResolver(resolver))
	require.NoError(t, err)

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, model.StateCompleted, task.State())
	assert.Equal(t, "private data", sink.String())
	assert.Equal(t, 1, unauthenticated)
	assert.Equal(t, 1, authenticated)
}

func TestTaskAuthRejectedTwice(t *testing.T) {
	ctrl := gomock.NewController(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	origin := serverOrigin(t, srv)
	resolver := mocks.NewMockProvider(ctrl)
	resolver.EXPECT().
		Resolve(gomock.Any(), origin, false).
		Return(&model.Credential{Username: "alice", Password: "wrong"}, nil).
		Times(1)
	resolver.EXPECT().ReportInvalid(origin).Times(1)

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink, download.WithResolver(resolver))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsAuthenticationFailed(err))
	assert.ErrorIs(t, err, download.ErrCredentialsRejected)
	assert.Equal(t, model.StateFailed, task.State())
}

func TestTaskAuthNoResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink)
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsAuthenticationFailed(err))
	assert.ErrorIs(t, err, download.ErrNoCredentials)
}

func TestTaskAuthResolverHasNothing(t *testing.T) {
	ctrl := gomock.NewController(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resolver := mocks.NewMockProvider(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), serverOrigin(t, srv), false).Return(nil, nil).Times(1)

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink, download.WithResolver(resolver))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, download.IsAuthenticationFailed(err))
	assert.ErrorIs(t, err, download.ErrNoCredentials)
}

// A 401 behind a redirect must resolve credentials for the redirect target's
// origin, and the task's source must reflect the final URL.
func TestTaskRedirectedAuthUsesFinalOrigin(t *testing.T) {
	ctrl := gomock.NewController(t)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("moved data"))
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/res", http.StatusFound)
	}))
	defer redirector.Close()

	resolver := mocks.NewMockProvider(ctrl)
	resolver.EXPECT().
		Resolve(gomock.Any(), serverOrigin(t, target), false).
		Return(&model.Credential{Username: "alice", Password: "secret"}, nil).
		Times(1)

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, redirector.URL+"/res"), &sink, download.WithResolver(resolver))
	require.NoError(t, err)

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, "moved data", sink.String())
	assert.Equal(t, mustParse(t, target.URL+"/res").Host, task.Source().Host)
}

func TestTaskCancelledMidStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte(strings.Repeat("x", 40)))
		flusher.Flush()
		// Hold the rest of the body until the client goes away.
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &safeBuffer{}
	task, err := download.NewTask(mustParse(t, srv.URL), sink,
		download.WithChunkSize(10),
		download.WithProgressFunc(func(p model.Progress) {
			if p.Processed >= 40 {
				cancel()
			}
		}))
	require.NoError(t, err)

	err = task.Execute(ctx)
	require.Error(t, err)
	assert.True(t, download.IsCancelled(err))
	assert.Equal(t, model.StateCancelled, task.State())
	// Nothing may be written past the cancellation point.
	assert.Equal(t, 40, sink.Len())
	assert.Equal(t, int64(40), task.Progress().Processed)
}

func TestTaskCancelledBeforeRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, "http://example.com/file"), &sink)
	require.NoError(t, err)

	err = task.Execute(ctx)
	require.Error(t, err)
	assert.True(t, download.IsCancelled(err))
	assert.Equal(t, model.StateCancelled, task.State())
}

func TestTaskTransportErrorCarriesSource(t *testing.T) {
	var sink bytes.Buffer
	// Port 1 on loopback: connection refused without leaving the machine.
	task, err := download.NewTask(mustParse(t, "http://127.0.0.1:1/file"), &sink)
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)

	var derr *download.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, download.KindTransport, derr.Kind)
	assert.Contains(t, derr.Source, "127.0.0.1:1")
	assert.Equal(t, model.StateFailed, task.State())
}

func TestTaskUnexpectedStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink)
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 404")
	assert.Equal(t, model.StateFailed, task.State())
}

func TestTaskStateProgression(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	var states []model.State
	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink,
		download.WithStateFunc(func(s model.State) { states = append(states, s) }))
	require.NoError(t, err)

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, []model.State{model.StateHeader, model.StateData, model.StateCompleted}, states)
}

func TestTaskCannotBeReexecuted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	var sink bytes.Buffer
	task, err := download.NewTask(mustParse(t, srv.URL), &sink)
	require.NoError(t, err)

	require.NoError(t, task.Execute(context.Background()))
	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already executed")
}

func TestNewTaskValidation(t *testing.T) {
	var sink bytes.Buffer

	_, err := download.NewTask(nil, &sink)
	require.Error(t, err)

	relative, err := url.Parse("/just/a/path")
	require.NoError(t, err)
	_, err = download.NewTask(relative, &sink)
	require.Error(t, err)

	_, err = download.NewTask(mustParse(t, "http://example.com/f"), nil)
	require.Error(t, err)
}

func TestTaskErrorFormat(t *testing.T) {
	derr := &download.Error{
		Kind:   download.KindSizeMismatch,
		Source: "http://example.com/f",
		Err:    fmt.Errorf("boom"),
	}
	assert.Equal(t, "download http://example.com/f: size_mismatch: boom", derr.Error())
	assert.True(t, errors.Is(derr, derr.Err) || derr.Unwrap() != nil)
}
