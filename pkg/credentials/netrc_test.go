package credentials_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/fetch/pkg/credentials"
	"github.com/glorpus-work/fetch/pkg/model"
)

func writeNetrc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netrc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNetrcSourceResolve(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		origin   model.Origin
		expected *model.Credential
	}{
		{
			name:     "single machine",
			content:  "machine example.com login alice password secret\n",
			origin:   testOrigin,
			expected: &model.Credential{Username: "alice", Password: "secret"},
		},
		{
			name: "multiline entry",
			content: `machine example.com
  login alice
  password secret
`,
			origin:   testOrigin,
			expected: &model.Credential{Username: "alice", Password: "secret"},
		},
		{
			name: "last duplicate machine wins",
			content: `machine example.com login old password stale
machine example.com login alice password secret
`,
			origin:   testOrigin,
			expected: &model.Credential{Username: "alice", Password: "secret"},
		},
		{
			name: "default entry as fallback",
			content: `machine other.example.com login bob password pw
default login fallback password anon
`,
			origin:   testOrigin,
			expected: &model.Credential{Username: "fallback", Password: "anon"},
		},
		{
			name:     "host matched case insensitively",
			content:  "machine Example.COM login alice password secret\n",
			origin:   testOrigin,
			expected: &model.Credential{Username: "alice", Password: "secret"},
		},
		{
			name:     "unknown host",
			content:  "machine other.example.com login bob password pw\n",
			origin:   testOrigin,
			expected: nil,
		},
		{
			name:     "account keyword skipped",
			content:  "machine example.com login alice account billing password secret\n",
			origin:   testOrigin,
			expected: &model.Credential{Username: "alice", Password: "secret"},
		},
		{
			name:     "truncated trailing group",
			content:  "machine example.com login alice password secret\nmachine other.example.com login\n",
			origin:   testOrigin,
			expected: &model.Credential{Username: "alice", Password: "secret"},
		},
		{
			name:     "malformed file means no credentials",
			content:  "login without machine password",
			origin:   testOrigin,
			expected: nil,
		},
		{
			name:     "empty file",
			content:  "",
			origin:   testOrigin,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := credentials.NewNetrcSource(writeNetrc(t, tt.content))
			cred, err := source.Resolve(context.Background(), tt.origin, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cred)
		})
	}
}

func TestNetrcSourceMissingFile(t *testing.T) {
	source := credentials.NewNetrcSource(filepath.Join(t.TempDir(), "does-not-exist"))
	cred, err := source.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestNetrcSourcePicksUpFileChanges(t *testing.T) {
	path := writeNetrc(t, "machine example.com login alice password old\n")
	source := credentials.NewNetrcSource(path)

	cred, err := source.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "old", cred.Password)

	require.NoError(t, os.WriteFile(path, []byte("machine example.com login alice password new\n"), 0o600))

	cred, err = source.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "new", cred.Password)
}
