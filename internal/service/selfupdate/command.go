package selfupdate

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	// Ensure SHA-512 is linked in for checksum verification.
	_ "crypto/sha512"

	"github.com/oshokin/compose-updater/internal/config"
	"github.com/oshokin/compose-updater/internal/logger"
	"github.com/oshokin/compose-updater/internal/version"
)

var (
	errNoManifestURL       = errors.New("no update manifest URL configured")
	errEmptyManifest       = errors.New("update manifest is empty")
	errBadHTTPStatus       = errors.New("unexpected http status")
	errUnsupportedPlatform = errors.New("no release binary for platform")
	errIncompleteBinary    = errors.New("release binary entry is incomplete")
	errChecksumUnavailable = errors.New("checksum function is not available")
)

const (
	// checksumFunction hashes release binaries for verification.
	checksumFunction crypto.Hash = crypto.SHA512

	// targetFileMode is applied to the replaced binary.
	targetFileMode os.FileMode = 0o755
)

// Options are inputs accepted by the self-update entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// ManifestURL overrides the configured manifest location.
	ManifestURL string
	// Force applies the release even when its version matches the running one.
	Force bool
}

// Run replaces the running binary with the published release.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "self-update")

	target, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	return runTo(ctx, opts, target)
}

// runTo is Run with an explicit target path.
func runTo(ctx context.Context, opts *Options, target string) error {
	manifestURL, err := resolveManifestURL(opts)
	if err != nil {
		return err
	}

	logger.Infof(ctx, "Fetching release manifest from %s", manifestURL)

	manifest, err := fetchManifest(ctx, manifestURL)
	if err != nil {
		return err
	}

	if manifest.Version == version.Short() && !opts.Force {
		logger.Infof(ctx, "Already running version %s", version.Short())
		return nil
	}

	binary, err := manifest.BinaryForPlatform()
	if err != nil {
		return err
	}

	checksum, err := binary.DecodedChecksum()
	if err != nil {
		return err
	}

	downloadURL, err := binaryURL(manifestURL, binary.File)
	if err != nil {
		return err
	}

	logger.Infof(ctx, "Downloading %s", downloadURL)

	data, err := fetchURL(ctx, downloadURL)
	if err != nil {
		return err
	}

	if err = applyUpdate(data, checksum, target); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	logger.Infof(ctx, "Updated %s to version %s", target, manifest.Version)

	return nil
}

// resolveManifestURL prefers the flag over the settings file.
func resolveManifestURL(opts *Options) (string, error) {
	if opts.ManifestURL != "" {
		return opts.ManifestURL, nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if opts.ConfigPath == "" && errors.Is(err, os.ErrNotExist) {
			return "", errNoManifestURL
		}

		return "", err
	}

	if cfg.UpdateManifestURL == "" {
		return "", errNoManifestURL
	}

	return cfg.UpdateManifestURL, nil
}

// fetchManifest downloads and parses the release manifest.
func fetchManifest(ctx context.Context, rawURL string) (*Manifest, error) {
	data, err := fetchURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if manifest.Version == "" || len(manifest.Binaries) == 0 {
		return nil, errEmptyManifest
	}

	return &manifest, nil
}

// binaryURL resolves an artifact name relative to the manifest location.
func binaryURL(manifestURL, file string) (string, error) {
	parsed, err := url.Parse(manifestURL)
	if err != nil {
		return "", fmt.Errorf("parse manifest URL: %w", err)
	}

	// path.Join also normalizes duplicate slashes.
	parsed.Path = path.Join(path.Dir(parsed.Path), file)

	return parsed.String(), nil
}

// fetchURL downloads a URL into memory.
func fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}

// applyUpdate verifies the checksum and atomically replaces the target.
func applyUpdate(data, checksum []byte, target string) error {
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, err := os.Create(target)
		if err != nil {
			return err
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: targetFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	return goupdate.Apply(bytes.NewReader(data), options)
}
