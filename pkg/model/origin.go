// Package model defines the shared types of the download pipeline: credentials,
// origins, download states and progress counters. It has no dependencies on the
// transport or resolver packages so that both sides can share it freely.
package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Origin is the reduced identity of a URL used as the credential lookup key:
// scheme, host and port with path, query and user-info stripped. Two URLs with
// the same scheme/host/port map to the same Origin regardless of path.
type Origin struct {
	Scheme string
	Host   string
	Port   int
}

// Default ports substituted when the URL does not carry an explicit port.
const (
	defaultHTTPPort  = 80
	defaultHTTPSPort = 443
)

// OriginOf derives the Origin of a URL. Scheme and host are lowercased and a
// missing port is filled in from the scheme default, so "http://Host/a" and
// "http://host:80/b" produce the same value.
func OriginOf(u *url.URL) Origin {
	o := Origin{
		Scheme: strings.ToLower(u.Scheme),
		Host:   strings.ToLower(u.Hostname()),
	}
	if portStr := u.Port(); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			o.Port = port
		}
	}
	if o.Port == 0 {
		switch o.Scheme {
		case "http":
			o.Port = defaultHTTPPort
		case "https":
			o.Port = defaultHTTPSPort
		}
	}
	return o
}

// String renders the origin in URL form, e.g. "https://example.com:443".
func (o Origin) String() string {
	return fmt.Sprintf("%s://%s:%d", o.Scheme, o.Host, o.Port)
}
