package credentials

import (
	"context"

	"github.com/glorpus-work/fetch/pkg/logger"
	"github.com/glorpus-work/fetch/pkg/model"
	"github.com/sirupsen/logrus"
)

// StoreSource adapts an injected SecretStore into a chain source. It is
// strictly non-interactive: it only ever surfaces material that is already
// stored, and a store failure is treated as "no credential" so an unhealthy
// OS keychain cannot break downloads that do not need it.
type StoreSource struct {
	store SecretStore
}

// NewStoreSource wraps the given store.
func NewStoreSource(store SecretStore) *StoreSource {
	return &StoreSource{store: store}
}

// Resolve looks the origin up in the store.
func (s *StoreSource) Resolve(_ context.Context, origin model.Origin, _ bool) (*model.Credential, error) {
	cred, ok, err := s.store.Lookup(origin)
	if err != nil {
		logger.Debug("secret store lookup failed", logrus.Fields{
			"origin": origin.String(),
			"error":  err.Error(),
		})
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return cred, nil
}

// ReportInvalid asks the store to forget the stale entry so the next resolve
// does not replay it.
func (s *StoreSource) ReportInvalid(origin model.Origin) {
	if err := s.store.Forget(origin); err != nil {
		logger.Debug("secret store forget failed", logrus.Fields{
			"origin": origin.String(),
			"error":  err.Error(),
		})
	}
}
