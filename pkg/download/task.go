package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/glorpus-work/fetch/pkg/auth"
	"github.com/glorpus-work/fetch/pkg/credentials"
	pkgerrors "github.com/glorpus-work/fetch/pkg/errors"
	"github.com/glorpus-work/fetch/pkg/logger"
	"github.com/glorpus-work/fetch/pkg/model"
)

// Defaults applied by NewTask.
const (
	DefaultChunkSize = int64(32 * 1024)
	DefaultTimeout   = 30 * time.Second
	defaultUserAgent = "fetch/1.0"
)

// Task downloads one resource into a caller-owned sink. A task is created per
// request and discarded after it reaches a terminal state; the credential
// resolver behind it is long-lived and shared across tasks.
//
// The first attempt is always made without credentials. On a 401 the task
// resolves a credential for the origin of the current (post-redirect) source
// and retries once with it attached; a second 401 reports the credential
// invalid and fails. All other failures surface immediately with the source
// URL as context.
type Task struct {
	id        uuid.UUID
	client    *http.Client
	sink      io.Writer
	resolver  credentials.Provider
	userAgent string
	expected  int64
	maxSize   int64
	chunkSize int64

	onProgress func(model.Progress)
	onState    func(model.State)

	mu       sync.Mutex
	source   *url.URL
	state    model.State
	progress model.Progress
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithClient sets the HTTP client. The default client has DefaultTimeout.
func WithClient(client *http.Client) TaskOption {
	return func(t *Task) { t.client = client }
}

// WithResolver sets the credential resolver consulted on a 401. Without one,
// any 401 is an immediate authentication failure.
func WithResolver(resolver credentials.Provider) TaskOption {
	return func(t *Task) { t.resolver = resolver }
}

// WithExpectedSize declares the size the caller expects. A server declaring
// or sending a different number of bytes fails the download.
func WithExpectedSize(size int64) TaskOption {
	return func(t *Task) { t.expected = size }
}

// WithMaxSize caps the transfer; both the declared length and the actually
// transferred bytes are checked against it. Zero means no cap.
func WithMaxSize(size int64) TaskOption {
	return func(t *Task) { t.maxSize = size }
}

// WithChunkSize sets the streaming chunk size; cancellation is observed once
// per chunk.
func WithChunkSize(size int64) TaskOption {
	return func(t *Task) {
		if size > 0 {
			t.chunkSize = size
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) TaskOption {
	return func(t *Task) {
		if userAgent != "" {
			t.userAgent = userAgent
		}
	}
}

// WithProgressFunc registers a callback invoked after every written chunk and
// whenever the total becomes known.
func WithProgressFunc(fn func(model.Progress)) TaskOption {
	return func(t *Task) { t.onProgress = fn }
}

// WithStateFunc registers a callback invoked on every state transition.
func WithStateFunc(fn func(model.State)) TaskOption {
	return func(t *Task) { t.onState = fn }
}

// NewTask creates a download task for source writing into sink. The sink is
// exclusively owned by the task until Execute returns.
func NewTask(source *url.URL, sink io.Writer, opts ...TaskOption) (*Task, error) {
	if source == nil || !source.IsAbs() {
		return nil, fmt.Errorf("source must be an absolute URL: %w", pkgerrors.ErrInvalidPath)
	}
	if sink == nil {
		return nil, fmt.Errorf("target sink must not be nil: %w", pkgerrors.ErrInvalidPath)
	}

	src := *source
	t := &Task{
		id:        uuid.New(),
		source:    &src,
		sink:      sink,
		userAgent: defaultUserAgent,
		expected:  model.UnknownSize,
		chunkSize: DefaultChunkSize,
		state:     model.StateCreated,
		progress:  model.Progress{Processed: 0, Total: model.UnknownSize},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: DefaultTimeout}
	}
	if t.expected != model.UnknownSize {
		t.setTotal(t.expected)
	}
	return t, nil
}

// ID returns the task identifier.
func (t *Task) ID() uuid.UUID { return t.id }

// Source returns the current source URL. After redirect processing it
// reflects the final URL, not the one initially requested.
func (t *Task) Source() *url.URL {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := *t.source
	return &src
}

// State returns the current lifecycle state.
func (t *Task) State() model.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns a snapshot of the byte counters.
func (t *Task) Progress() model.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Execute runs the download to completion. It blocks until the terminal
// state is reached and returns nil only from StateCompleted. A task cannot
// be executed twice.
func (t *Task) Execute(ctx context.Context) error {
	if t.State() != model.StateCreated {
		return fmt.Errorf("task %s already executed", t.id)
	}
	if err := ctx.Err(); err != nil {
		return t.cancelled(err)
	}

	t.advance(model.StateHeader)
	resp, err := t.negotiate(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := t.verifyHeader(resp); err != nil {
		return t.failed(KindSizeMismatch, err)
	}

	t.advance(model.StateData)
	if err := t.stream(ctx, resp.Body); err != nil {
		return err
	}

	t.advance(model.StateCompleted)
	logger.Debug("download completed", logrus.Fields{
		"task":   t.id.String(),
		"source": t.sourceString(),
		"bytes":  t.Progress().Processed,
	})
	return nil
}

// negotiate performs the request and drives the two-strikes authentication
// protocol. The response it returns has a 2xx status.
func (t *Task) negotiate(ctx context.Context) (*http.Response, error) {
	resp, err := t.do(ctx, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return t.checkStatus(resp)
	}
	_ = resp.Body.Close()

	if t.resolver == nil {
		return nil, t.failed(KindAuthentication, ErrNoCredentials)
	}

	// Origin of the final URL: a redirect before the 401 means the new host
	// is the one demanding authentication.
	origin := model.OriginOf(t.Source())
	cred, err := t.resolver.Resolve(ctx, origin, false)
	if err != nil {
		if ctx.Err() != nil {
			return nil, t.cancelled(err)
		}
		return nil, t.failed(KindAuthentication, err)
	}
	if cred == nil {
		return nil, t.failed(KindAuthentication, ErrNoCredentials)
	}

	resp, err = t.do(ctx, cred)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		t.resolver.ReportInvalid(model.OriginOf(t.Source()))
		return nil, t.failed(KindAuthentication, ErrCredentialsRejected)
	}
	return t.checkStatus(resp)
}

// do issues a single GET for the current source, optionally with Basic
// credentials attached, and rewrites the source from the final request URL.
func (t *Task) do(ctx context.Context, cred *model.Credential) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.sourceString(), http.NoBody)
	if err != nil {
		return nil, t.failed(KindTransport, pkgerrors.Wrap(err, "failed to create request"))
	}
	req.Header.Set("User-Agent", t.userAgent)
	if cred != nil {
		if err := auth.FromCredential(*cred).Apply(req); err != nil {
			return nil, t.failed(KindTransport, err)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// Caller-requested aborts show up on the context; a client timeout
		// without one is a transport failure.
		if ctx.Err() != nil {
			return nil, t.cancelled(err)
		}
		return nil, t.failed(KindTransport, err)
	}
	t.rewriteSource(resp.Request.URL)
	return resp, nil
}

func (t *Task) checkStatus(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		code := resp.StatusCode
		_ = resp.Body.Close()
		return nil, t.failed(KindTransport,
			fmt.Errorf("unexpected status code: %d: %w", code, pkgerrors.ErrDownloadFailed))
	}
	return resp, nil
}

// verifyHeader checks the server-declared length against the caller's
// expectation and the cap, then establishes the progress total.
func (t *Task) verifyHeader(resp *http.Response) error {
	declared := resp.ContentLength
	if declared >= 0 {
		if t.expected != model.UnknownSize && t.expected != declared {
			return &SizeMismatchError{Want: t.expected, Got: declared, Reason: "server declared a different length"}
		}
		if t.maxSize > 0 && declared > t.maxSize {
			return &SizeMismatchError{Want: t.maxSize, Got: declared, Reason: "declared length exceeds the configured maximum"}
		}
		t.setTotal(declared)
	}
	return nil
}

// stream copies the body to the sink in bounded chunks. Declared length and
// transferred length are verified independently; either can fail the task.
func (t *Task) stream(ctx context.Context, body io.Reader) error {
	buf := make([]byte, t.chunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return t.cancelled(err)
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if t.maxSize > 0 && written+int64(n) > t.maxSize {
				return t.failed(KindSizeMismatch,
					&SizeMismatchError{Want: t.maxSize, Got: written + int64(n), Reason: "transfer exceeds the configured maximum"})
			}
			if total := t.total(); total != model.UnknownSize && written+int64(n) > total {
				return t.failed(KindSizeMismatch,
					&SizeMismatchError{Want: total, Got: written + int64(n), Reason: "server sent more data than declared"})
			}
			if _, err := t.sink.Write(buf[:n]); err != nil {
				return t.failed(KindTransport, pkgerrors.Wrap(err, "failed to write to target"))
			}
			written += int64(n)
			t.setProcessed(written)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return t.cancelled(readErr)
			}
			// The transport reports a short body against a declared length as
			// an unexpected EOF; that is a size mismatch, not a plain
			// transport failure.
			if errors.Is(readErr, io.ErrUnexpectedEOF) {
				if total := t.total(); total != model.UnknownSize {
					return t.failed(KindSizeMismatch,
						&SizeMismatchError{Want: total, Got: written, Reason: "connection closed before the declared length"})
				}
			}
			return t.failed(KindTransport, pkgerrors.Wrap(readErr, "failed to read response body"))
		}
	}

	if total := t.total(); total != model.UnknownSize && written != total {
		return t.failed(KindSizeMismatch,
			&SizeMismatchError{Want: total, Got: written, Reason: "connection closed before the declared length"})
	}
	return nil
}

// advance moves the state forward. Transitions are monotonic; a terminal
// state is never left and a later state never regresses to an earlier one.
func (t *Task) advance(state model.State) {
	t.mu.Lock()
	if t.state.Terminal() || state <= t.state {
		t.mu.Unlock()
		return
	}
	t.state = state
	cb := t.onState
	t.mu.Unlock()

	if cb != nil {
		cb(state)
	}
}

func (t *Task) cancelled(cause error) error {
	t.advance(model.StateCancelled)
	return &Error{Kind: KindCancelled, Source: t.sourceString(), Err: cause}
}

func (t *Task) failed(kind Kind, cause error) error {
	t.advance(model.StateFailed)
	return &Error{Kind: kind, Source: t.sourceString(), Err: cause}
}

func (t *Task) rewriteSource(u *url.URL) {
	if u == nil {
		return
	}
	t.mu.Lock()
	src := *u
	t.source = &src
	t.mu.Unlock()
}

func (t *Task) sourceString() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source.String()
}

func (t *Task) total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.Total
}

func (t *Task) setTotal(total int64) {
	t.mu.Lock()
	t.progress.Total = total
	snapshot := t.progress
	cb := t.onProgress
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (t *Task) setProcessed(processed int64) {
	t.mu.Lock()
	t.progress.Processed = processed
	snapshot := t.progress
	cb := t.onProgress
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}
