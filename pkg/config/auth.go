package config

import (
	"strings"

	"github.com/glorpus-work/fetch/pkg/auth"
	"github.com/glorpus-work/fetch/pkg/model"
)

// AuthConfig holds the authentication configuration for one host. Exactly one
// of the variants is expected to be set.
type AuthConfig struct {
	BasicAuth  *BasicAuth  `yaml:"basic,omitempty"`
	HeaderAuth *HeaderAuth `yaml:"header,omitempty"`
	BearerAuth *BearerAuth `yaml:"bearer,omitempty"`
}

// BasicAuth holds configuration for HTTP Basic Authentication.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HeaderAuth holds configuration for custom header-based authentication.
type HeaderAuth struct {
	Headers map[string]string `yaml:"headers"`
}

// BearerAuth holds configuration for Bearer token authentication.
type BearerAuth struct {
	Token string `yaml:"token"`
}

// ToAuthenticator converts the BasicAuth configuration to an Authenticator.
func (b *BasicAuth) ToAuthenticator() auth.Authenticator {
	return &auth.BasicAuth{Username: b.Username, Password: b.Password}
}

// ToAuthenticator converts the HeaderAuth configuration to an Authenticator.
func (h *HeaderAuth) ToAuthenticator() auth.Authenticator {
	return &auth.HeaderAuth{Headers: h.Headers}
}

// ToAuthenticator converts the BearerAuth configuration to an Authenticator.
func (b *BearerAuth) ToAuthenticator() auth.Authenticator {
	return &auth.BearerAuth{Token: b.Token}
}

// ToAuthMap converts the per-host authentication configurations to a map of
// host names to Authenticators. Returns nil if nothing is configured.
func (c *Config) ToAuthMap() map[string]auth.Authenticator {
	results := make(map[string]auth.Authenticator, len(c.Hosts))
	for _, host := range c.Hosts {
		if host == nil || host.Auth == nil {
			continue
		}
		switch {
		case host.Auth.BasicAuth != nil:
			results[host.Host] = host.Auth.BasicAuth.ToAuthenticator()
		case host.Auth.HeaderAuth != nil:
			results[host.Host] = host.Auth.HeaderAuth.ToAuthenticator()
		case host.Auth.BearerAuth != nil:
			results[host.Host] = host.Auth.BearerAuth.ToAuthenticator()
		}
	}

	if len(results) == 0 {
		return nil
	}
	return results
}

// StaticCredentials extracts the basic-auth entries as a host-to-credential
// map, the form the credential chain's static source consumes. Header and
// bearer entries have no username/password shape and are not included.
func (c *Config) StaticCredentials() map[string]model.Credential {
	results := make(map[string]model.Credential, len(c.Hosts))
	for _, host := range c.Hosts {
		if host == nil || host.Auth == nil || host.Auth.BasicAuth == nil {
			continue
		}
		results[strings.ToLower(host.Host)] = model.Credential{
			Username: host.Auth.BasicAuth.Username,
			Password: host.Auth.BasicAuth.Password,
		}
	}

	if len(results) == 0 {
		return nil
	}
	return results
}
