package download

import (
	"errors"
	"fmt"
)

// Kind classifies how a download ended. The task's state machine branches on
// these values instead of on caught error types.
type Kind string

// Error kinds.
const (
	// KindTransport covers DNS, timeout and connection errors as well as
	// unexpected status codes. Not retried by this subsystem.
	KindTransport Kind = "transport"
	// KindAuthentication means credentials were rejected twice, or rejected
	// once with no resolver able to supply any.
	KindAuthentication Kind = "authentication"
	// KindSizeMismatch means declared, expected and transferred byte counts
	// disagree, or the configured cap was exceeded.
	KindSizeMismatch Kind = "size_mismatch"
	// KindCancelled means the caller aborted the download.
	KindCancelled Kind = "cancelled"
)

// Authentication failure causes, distinguished for the user.
var (
	// ErrNoCredentials means the server demanded authentication but no
	// resolver was configured or the resolver had nothing to offer.
	ErrNoCredentials = errors.New("no credentials available")
	// ErrCredentialsRejected means a resolved credential was attached and the
	// server rejected it again.
	ErrCredentialsRejected = errors.New("credentials rejected twice")
)

// Error is the result type of a failed download. It carries the error kind,
// the source URL as context and whether the failure is retryable by an outer
// layer (only authentication failures before the second strike ever are, and
// the task retries those itself, so surfaced errors are never retryable).
type Error struct {
	Kind      Kind
	Source    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SizeMismatchError reports disagreeing byte counts. Want is what was
// expected (caller-declared size, server-declared size or the configured
// cap), Got is what the other side produced.
type SizeMismatchError struct {
	Want   int64
	Got    int64
	Reason string
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %d bytes, got %d (%s)", e.Want, e.Got, e.Reason)
}

// IsCancelled reports whether err represents a caller-requested abort.
func IsCancelled(err error) bool {
	var derr *Error
	return errors.As(err, &derr) && derr.Kind == KindCancelled
}

// IsAuthenticationFailed reports whether err is an authentication failure.
func IsAuthenticationFailed(err error) bool {
	var derr *Error
	return errors.As(err, &derr) && derr.Kind == KindAuthentication
}

// IsSizeMismatch reports whether err is a size verification failure.
func IsSizeMismatch(err error) bool {
	var derr *Error
	return errors.As(err, &derr) && derr.Kind == KindSizeMismatch
}
