package release

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/compose-updater/internal/logger"
	"github.com/oshokin/compose-updater/internal/service/selfupdate"
	"github.com/oshokin/compose-updater/internal/version"
)

// manifestFileMode is applied to the written manifest.
const manifestFileMode os.FileMode = 0o644

var (
	errNoBinaries        = errors.New("no release binaries given")
	errNoPlatformSuffix  = errors.New("file name carries no goos_goarch suffix")
	errDuplicatePlatform = errors.New("platform published twice")
)

// Options are inputs accepted by the manifest generator.
type Options struct {
	// Version is the release version; empty means the running build's version.
	Version string
	// Output is the manifest path; empty writes ManifestFilename into the
	// current directory.
	Output string
	// Binaries are the platform binaries to publish, named like
	// compose-updater_linux_amd64, with an optional .exe suffix.
	Binaries []string
}

// Run generates the release manifest for a set of platform binaries.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "release-manifest")

	gen, err := newGenerator(opts)
	if err != nil {
		return err
	}

	if err = gen.run(ctx); err != nil {
		return fmt.Errorf("generate manifest: %w", err)
	}

	logger.Info(ctx, "Manifest generated successfully")

	return nil
}

// generator accumulates the manifest of one release.
type generator struct {
	output   string
	binaries []string
	manifest *selfupdate.Manifest
}

func newGenerator(opts *Options) (*generator, error) {
	if len(opts.Binaries) == 0 {
		return nil, errNoBinaries
	}

	releaseVersion := opts.Version
	if releaseVersion == "" {
		releaseVersion = version.Short()
	}

	output := opts.Output
	if output == "" {
		output = selfupdate.ManifestFilename
	}

	return &generator{
		output:   output,
		binaries: opts.Binaries,
		manifest: &selfupdate.Manifest{
			Version:  releaseVersion,
			Binaries: make(map[string]selfupdate.Binary, len(opts.Binaries)),
		},
	}, nil
}

func (g *generator) run(ctx context.Context) error {
	if err := g.fillManifest(ctx); err != nil {
		return err
	}

	if err := g.saveManifest(ctx); err != nil {
		return err
	}

	g.printNextSteps(ctx)

	return nil
}

// fillManifest computes one manifest entry per binary.
func (g *generator) fillManifest(ctx context.Context) error {
	for _, binary := range g.binaries {
		platform, err := platformKey(binary)
		if err != nil {
			return err
		}

		if _, taken := g.manifest.Binaries[platform]; taken {
			return fmt.Errorf("%s: %w", platform, errDuplicatePlatform)
		}

		checksum, err := selfupdate.ChecksumFile(binary)
		if err != nil {
			return err
		}

		g.manifest.Binaries[platform] = selfupdate.Binary{
			File:     filepath.Base(binary),
			Checksum: base64.StdEncoding.EncodeToString(checksum),
		}

		logger.InfoKV(ctx, "Added release binary",
			"platform", platform,
			"file", filepath.Base(binary))
	}

	return nil
}

// saveManifest writes the manifest YAML to the output path.
func (g *generator) saveManifest(ctx context.Context) error {
	contents, err := yaml.Marshal(g.manifest)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saving release manifest",
		"path", g.output,
		"version", g.manifest.Version)

	return os.WriteFile(g.output, contents, manifestFileMode)
}

// printNextSteps lists what must end up next to the manifest URL.
func (g *generator) printNextSteps(ctx context.Context) {
	files := make([]string, 0, len(g.manifest.Binaries)+1)
	for _, binary := range g.manifest.Binaries {
		files = append(files, binary.File)
	}

	files = append(files, filepath.Base(g.output))
	sort.Strings(files)

	logger.Infof(ctx,
		"Upload these files to the folder your update_manifest URL points at: %s",
		strings.Join(files, ", "))
}

// platformKey derives "<goos>_<goarch>" from a release binary's file name.
func platformKey(path string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".exe")

	parts := strings.Split(name, "_")
	if len(parts) < 3 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("%s: %w", path, errNoPlatformSuffix)
	}

	return parts[len(parts)-2] + "_" + parts[len(parts)-1], nil
}
