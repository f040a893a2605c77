package credentials

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/fetch/pkg/logger"
	"github.com/glorpus-work/fetch/pkg/model"
	"github.com/sirupsen/logrus"
)

// NetrcSource reads credentials from a netrc-style file: whitespace-separated
// `machine <host> login <user> password <secret>` groups, with an optional
// `default` group used as a fallback. The last occurrence of a duplicate
// machine wins. A missing or malformed file means "no credentials available",
// never a fatal error.
type NetrcSource struct {
	path string
}

// NewNetrcSource creates a source reading from path. An empty path resolves
// to ~/.netrc at lookup time.
func NewNetrcSource(path string) *NetrcSource {
	return &NetrcSource{path: path}
}

// Resolve looks up the origin's host in the file. The file is re-read on
// every call; wrap the chain in a Cache to avoid repeated parsing.
func (s *NetrcSource) Resolve(_ context.Context, origin model.Origin, _ bool) (*model.Credential, error) {
	path := s.path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil
		}
		path = filepath.Join(home, ".netrc")
	}

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("netrc not readable", logrus.Fields{"path": path, "error": err.Error()})
		}
		return nil, nil
	}
	defer func() { _ = file.Close() }()

	machines := parseNetrc(file)
	if cred, ok := machines[origin.Host]; ok {
		return &cred, nil
	}
	if cred, ok := machines["default"]; ok {
		return &cred, nil
	}
	return nil, nil
}

// ReportInvalid marks the source as stale-capable; the file itself is left
// untouched so the user can fix it out of band.
func (s *NetrcSource) ReportInvalid(model.Origin) {}

// parseNetrc tokenizes the netrc grammar. Unknown keywords and truncated
// trailing groups are skipped rather than rejected.
func parseNetrc(file *os.File) map[string]model.Credential {
	machines := make(map[string]model.Credential)

	scanner := bufio.NewScanner(file)
	scanner.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}

	var current string
	for {
		tok, ok := next()
		if !ok {
			break
		}
		switch strings.ToLower(tok) {
		case "machine":
			host, ok := next()
			if !ok {
				return machines
			}
			current = strings.ToLower(host)
			machines[current] = model.Credential{}
		case "default":
			current = "default"
			machines[current] = model.Credential{}
		case "login":
			value, ok := next()
			if !ok {
				return machines
			}
			if current != "" {
				cred := machines[current]
				cred.Username = value
				machines[current] = cred
			}
		case "password":
			value, ok := next()
			if !ok {
				return machines
			}
			if current != "" {
				cred := machines[current]
				cred.Password = value
				machines[current] = cred
			}
		case "macdef":
			// Macros are not supported; skip the name and bail out, since a
			// macro body is only terminated by a blank line and the
			// word-based scanner cannot see those.
			return machines
		default:
			// account and other keywords take one value
			if _, ok := next(); !ok {
				return machines
			}
		}
	}
	return machines
}
