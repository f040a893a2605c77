package credentials

import (
	"context"
	"strings"

	"github.com/glorpus-work/fetch/pkg/model"
)

// StaticSource answers from a fixed host-to-credential map, typically built
// from the basic-auth entries of the application config.
type StaticSource struct {
	byHost map[string]model.Credential
}

// NewStaticSource copies the given map; host keys are matched
// case-insensitively against the origin host.
func NewStaticSource(byHost map[string]model.Credential) *StaticSource {
	hosts := make(map[string]model.Credential, len(byHost))
	for host, cred := range byHost {
		hosts[strings.ToLower(host)] = cred
	}
	return &StaticSource{byHost: hosts}
}

// Resolve returns the configured credential for the origin host, if any.
func (s *StaticSource) Resolve(_ context.Context, origin model.Origin, _ bool) (*model.Credential, error) {
	if cred, ok := s.byHost[origin.Host]; ok {
		return &cred, nil
	}
	return nil, nil
}

// ReportInvalid marks the source as stale-capable. The map is config-owned,
// so there is nothing to evict here.
func (s *StaticSource) ReportInvalid(model.Origin) {}
