package config

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/glorpus-work/fetch/pkg/errors"
)

// envLookup reads an environment variable trying the lower-case name first
// and the upper-case spelling as a fallback.
func envLookup(name string) string {
	if v := os.Getenv(strings.ToLower(name)); v != "" {
		return v
	}
	return os.Getenv(strings.ToUpper(name))
}

// ProxyFromEnv builds a proxy URL from the http_proxy, http_proxy_user and
// http_proxy_pass environment variables. Returns nil when no proxy is
// configured. Credentials given via the dedicated variables take precedence
// over any userinfo embedded in the proxy URL.
func ProxyFromEnv() (*url.URL, error) {
	raw := envLookup("http_proxy")
	if raw == "" {
		return nil, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	proxyURL, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidProxy, err.Error())
	}

	user := envLookup("http_proxy_user")
	pass := envLookup("http_proxy_pass")
	if user != "" {
		if pass != "" {
			proxyURL.User = url.UserPassword(user, pass)
		} else {
			proxyURL.User = url.User(user)
		}
	}

	return proxyURL, nil
}

// ProxyFunc returns a proxy selector for an http.Transport honoring the
// http_proxy environment convention. When nothing is configured the
// transport's default (no proxy) applies.
func ProxyFunc() (func(*http.Request) (*url.URL, error), error) {
	proxyURL, err := ProxyFromEnv()
	if err != nil {
		return nil, err
	}
	if proxyURL == nil {
		return nil, nil
	}
	return http.ProxyURL(proxyURL), nil
}
