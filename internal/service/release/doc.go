// Package release prepares the manifest consumed by self-update.
//
// It computes SHA-512 checksums for platform-specific binaries, keyed by the
// goos_goarch suffix of their file names, and writes the resulting YAML. The
// manifest and the binaries are then uploaded to the folder the settings
// file's update_manifest URL points at.
package release
