package release

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/compose-updater/internal/service/selfupdate"
	"github.com/oshokin/compose-updater/internal/version"
)

// writeBinary creates a fake release binary and returns its path.
func writeBinary(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, contents, 0o755))

	return path
}

// readManifest parses a written manifest back.
func readManifest(t *testing.T, path string) *selfupdate.Manifest {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var manifest selfupdate.Manifest
	require.NoError(t, yaml.Unmarshal(data, &manifest))

	return &manifest
}

// TestRun_WritesManifest publishes two platforms and verifies version, file names and checksums.
func TestRun_WritesManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	linuxBody := []byte("linux build")
	darwinBody := []byte("darwin build")

	options := &Options{
		Version: "2.0.0",
		Output:  filepath.Join(dir, "manifest.yaml"),
		Binaries: []string{
			writeBinary(t, dir, "compose-updater_linux_amd64", linuxBody),
			writeBinary(t, dir, "compose-updater_darwin_arm64", darwinBody),
		},
	}

	require.NoError(t, Run(context.Background(), options))

	manifest := readManifest(t, options.Output)
	require.Equal(t, "2.0.0", manifest.Version)
	require.Len(t, manifest.Binaries, 2)

	linuxChecksum := sha512.Sum512(linuxBody)
	require.Equal(t, selfupdate.Binary{
		File:     "compose-updater_linux_amd64",
		Checksum: base64.StdEncoding.EncodeToString(linuxChecksum[:]),
	}, manifest.Binaries["linux_amd64"])

	darwinChecksum := sha512.Sum512(darwinBody)
	require.Equal(t, selfupdate.Binary{
		File:     "compose-updater_darwin_arm64",
		Checksum: base64.StdEncoding.EncodeToString(darwinChecksum[:]),
	}, manifest.Binaries["darwin_arm64"])
}

// TestRun_DefaultsVersionAndOutput falls back to the build version and the conventional manifest name.
func TestRun_DefaultsVersionAndOutput(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	options := &Options{
		Binaries: []string{writeBinary(t, dir, "compose-updater_windows_amd64.exe", []byte("windows build"))},
	}

	require.NoError(t, Run(context.Background(), options))

	manifest := readManifest(t, filepath.Join(dir, selfupdate.ManifestFilename))
	require.Equal(t, version.Short(), manifest.Version)
	require.Contains(t, manifest.Binaries, "windows_amd64")
	require.Equal(t, "compose-updater_windows_amd64.exe", manifest.Binaries["windows_amd64"].File)
}

// TestRun_NoBinaries rejects an empty publish list.
func TestRun_NoBinaries(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, errNoBinaries)
}

// TestRun_DuplicatePlatform rejects two binaries resolving to the same platform key.
func TestRun_DuplicatePlatform(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	other := filepath.Join(dir, "other")
	require.NoError(t, os.MkdirAll(other, 0o755))

	options := &Options{
		Output: filepath.Join(dir, "manifest.yaml"),
		Binaries: []string{
			writeBinary(t, dir, "compose-updater_linux_amd64", []byte("one")),
			writeBinary(t, other, "compose-updater_linux_amd64", []byte("two")),
		},
	}

	err := Run(context.Background(), options)
	require.ErrorIs(t, err, errDuplicatePlatform)
}

// TestRun_MissingBinary propagates the stat failure of an absent binary.
func TestRun_MissingBinary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	options := &Options{
		Output:   filepath.Join(dir, "manifest.yaml"),
		Binaries: []string{filepath.Join(dir, "compose-updater_linux_amd64")},
	}

	err := Run(context.Background(), options)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestPlatformKey covers the goos_goarch derivation from file names.
func TestPlatformKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "plain", path: "compose-updater_linux_amd64", expected: "linux_amd64"},
		{name: "windows extension", path: "compose-updater_windows_arm64.exe", expected: "windows_arm64"},
		{name: "versioned name", path: "compose-updater_1.2.0_darwin_arm64", expected: "darwin_arm64"},
		{name: "full path", path: "/tmp/dist/compose-updater_linux_riscv64", expected: "linux_riscv64"},
		{name: "no suffix", path: "compose-updater"},
		{name: "single segment", path: "updater_linux"},
		{name: "empty segment", path: "compose-updater__amd64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			platform, err := platformKey(tt.path)
			if tt.expected == "" {
				require.ErrorIs(t, err, errNoPlatformSuffix)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expected, platform)
		})
	}
}
