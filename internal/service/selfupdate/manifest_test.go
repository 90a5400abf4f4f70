package selfupdate

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPlatformKey verifies the key carries both OS and architecture.
func TestPlatformKey(t *testing.T) {
	t.Parallel()

	key := PlatformKey()
	require.Contains(t, key, "_")
	require.False(t, strings.HasPrefix(key, "_"))
	require.False(t, strings.HasSuffix(key, "_"))
}

// TestBinaryForPlatform verifies platform lookup and entry validation.
func TestBinaryForPlatform(t *testing.T) {
	t.Parallel()

	manifest := &Manifest{
		Version: "2.0.0",
		Binaries: map[string]Binary{
			PlatformKey(): {File: "compose-updater", Checksum: "aGk="},
		},
	}

	binary, err := manifest.BinaryForPlatform()
	require.NoError(t, err)
	require.Equal(t, "compose-updater", binary.File)

	empty := &Manifest{Version: "2.0.0", Binaries: map[string]Binary{}}
	_, err = empty.BinaryForPlatform()
	require.ErrorIs(t, err, errUnsupportedPlatform)

	incomplete := &Manifest{
		Version: "2.0.0",
		Binaries: map[string]Binary{
			PlatformKey(): {File: "compose-updater"},
		},
	}
	_, err = incomplete.BinaryForPlatform()
	require.ErrorIs(t, err, errIncompleteBinary)
}

// TestDecodedChecksum verifies base64 decoding and its failure mode.
func TestDecodedChecksum(t *testing.T) {
	t.Parallel()

	want := []byte("digest-bytes")
	binary := Binary{Checksum: base64.StdEncoding.EncodeToString(want)}

	got, err := binary.DecodedChecksum()
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = Binary{Checksum: "%%%"}.DecodedChecksum()
	require.Error(t, err)
}
