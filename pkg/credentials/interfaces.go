// Package credentials resolves username/password pairs for download origins.
// A Chain queries an ordered list of sources (netrc file, static config, OS
// secret store, interactive prompt) and a Cache memoizes the outcome per
// origin so that many concurrent downloads share one resolution.
//
//go:generate mockgen -destination=./mocks/credentials.go -package=mocks . Provider,SecretStore,Prompter
package credentials

import (
	"context"

	"github.com/glorpus-work/fetch/pkg/model"
)

// Provider resolves credentials for an origin and accepts reports that a
// previously supplied credential was rejected. Resolve returns (nil, nil)
// when no credential is available; that is an answer, not an error. The retry
// flag signals that an earlier attempt for this origin failed, so a prompting
// source can tell the user and a stale source can be bypassed.
//
// Implementations must be safe for concurrent use by multiple download tasks.
type Provider interface {
	Resolve(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error)
	ReportInvalid(origin model.Origin)
}

// Source is one credential source inside a Chain. It only answers; the Chain
// handles ordering, short-circuiting and invalidation bookkeeping.
type Source interface {
	Resolve(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error)
}

// Invalidatable is implemented by sources that can hold a stale answer (file
// and store backed sources). The Chain forwards ReportInvalid only to these;
// sources that always prompt fresh never see the report.
type Invalidatable interface {
	ReportInvalid(origin model.Origin)
}

// SecretStore is the injected OS-native credential store capability. Lookup
// must never prompt; it only returns material that is already stored.
type SecretStore interface {
	Lookup(origin model.Origin) (*model.Credential, bool, error)
	Forget(origin model.Origin) error
}

// Prompter is the injected interactive UI capability. When retry is true the
// UI should indicate that the previous attempt was rejected.
type Prompter interface {
	Prompt(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error)
}
