// Package selfupdate replaces the running binary with the release published
// in a remote YAML manifest, verifying a SHA-512 checksum before applying.
package selfupdate
