// Package auth applies authentication material to outgoing HTTP requests.
//
//go:generate mockgen -destination=./mocks/auth.go -package=mocks . Authenticator
package auth

import (
	"net/http"

	"github.com/glorpus-work/fetch/pkg/model"
)

// Authenticator applies authentication to an HTTP request.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type identifies an authentication mechanism.
type Type string

// Authentication types.
const (
	BasicAuthType  Type = "basic"
	HeaderAuthType Type = "header"
	BearerAuthType Type = "bearer"
)

// BasicAuth attaches HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// FromCredential builds a BasicAuth from a resolved credential. This is the
// only mechanism the download task itself uses; the others exist for static
// per-host configuration.
func FromCredential(cred model.Credential) *BasicAuth {
	return &BasicAuth{Username: cred.Username, Password: cred.Password}
}

// Apply sets the Authorization header using Basic auth.
func (b *BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Type returns BasicAuthType.
func (b *BasicAuth) Type() Type { return BasicAuthType }

// HeaderAuth attaches arbitrary authentication headers.
type HeaderAuth struct {
	Headers map[string]string
}

// Apply sets every configured header on the request.
func (h *HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// Type returns HeaderAuthType.
func (h *HeaderAuth) Type() Type { return HeaderAuthType }

// BearerAuth attaches a Bearer token.
type BearerAuth struct {
	Token string
}

// Apply sets the Authorization header with the Bearer scheme.
func (b *BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b *BearerAuth) Type() Type { return BearerAuthType }
