package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCredentials(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".docker-update")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestLoadCredentials verifies parsing of the credentials file, comments
// included, with entry order preserved.
func TestLoadCredentials(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, `[
	// production registry
	{"registry.example.com": {"username": "ci", "password": "secret"}},
	{"ghcr.io": {"username": "bot", "password": "hunter2"}}
]`)

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	require.Equal(t, []Credential{
		{Host: "registry.example.com", Username: "ci", Password: "secret"},
		{Host: "ghcr.io", Username: "bot", Password: "hunter2"},
	}, creds)
}

// TestLoadCredentials_Absent verifies a missing file yields no credentials
// and no error.
func TestLoadCredentials_Absent(t *testing.T) {
	t.Parallel()

	creds, err := LoadCredentials(filepath.Join(t.TempDir(), ".docker-update"))
	require.NoError(t, err)
	require.Nil(t, creds)
}

// TestLoadCredentials_Invalid verifies malformed or incomplete entries fail.
func TestLoadCredentials_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		contents string
	}{
		{"not json", "registry=example"},
		{"missing password", `[{"registry.example.com": {"username": "ci"}}]`},
		{"missing username", `[{"registry.example.com": {"password": "x"}}]`},
		{"empty host", `[{"": {"username": "ci", "password": "x"}}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadCredentials(writeCredentials(t, tc.contents))
			require.Error(t, err)
		})
	}
}
