package selfupdate

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ManifestFilename is the conventional file name of a published manifest.
const ManifestFilename = "compose-updater-version.yaml"

// Manifest describes a published release of this tool.
type Manifest struct {
	// Version is the semantic version of the release.
	Version string `yaml:"version"`
	// Binaries maps platform keys, "linux_amd64" style, to release artifacts.
	Binaries map[string]Binary `yaml:"binaries"`
}

// Binary is one platform's release artifact.
type Binary struct {
	// File is the artifact name, resolved relative to the manifest location.
	File string `yaml:"file"`
	// Checksum is the base64-encoded SHA-512 digest of the artifact.
	Checksum string `yaml:"checksum"`
}

// PlatformKey identifies the running platform inside a manifest.
func PlatformKey() string {
	return runtime.GOOS + "_" + runtime.GOARCH
}

// BinaryForPlatform picks the artifact published for the running platform.
func (m *Manifest) BinaryForPlatform() (Binary, error) {
	binary, ok := m.Binaries[PlatformKey()]
	if !ok {
		return Binary{}, fmt.Errorf("%w: %s", errUnsupportedPlatform, PlatformKey())
	}

	if binary.File == "" || binary.Checksum == "" {
		return Binary{}, fmt.Errorf("%w: %s", errIncompleteBinary, PlatformKey())
	}

	return binary, nil
}

// DecodedChecksum returns the checksum bytes of the artifact.
func (b Binary) DecodedChecksum() ([]byte, error) {
	checksum, err := base64.StdEncoding.DecodeString(b.Checksum)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}

	return checksum, nil
}

// ChecksumFile hashes a release artifact the way self-update verifies it
// after download. Used when publishing a release.
func ChecksumFile(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !checksumFunction.Available() {
		return nil, errChecksumUnavailable
	}

	hasher := checksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
