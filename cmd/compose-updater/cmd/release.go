package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/compose-updater/internal/service/release"
	"github.com/oshokin/compose-updater/internal/service/selfupdate"
)

var (
	// releaseVersion stamps the generated manifest.
	releaseVersion string
	// releaseOutput is where the manifest is written.
	releaseOutput string

	// releaseCmd generates the manifest that self-update consumes.
	releaseCmd = &cobra.Command{
		Use:   "release-manifest <binary>...",
		Short: "Generate the release manifest consumed by self-update",
		Long: `Computes SHA-512 checksums for the given platform binaries and writes the
release manifest. Binaries must carry a goos_goarch name suffix, for example
compose-updater_linux_amd64. Upload the manifest and the binaries to the
folder the settings file's update_manifest URL points at.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &release.Options{
				Version:  releaseVersion,
				Output:   releaseOutput,
				Binaries: args,
			}

			return release.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	releaseCmd.Flags().StringVar(&releaseVersion, "release-version", "",
		"version to stamp into the manifest (default: this binary's version)")
	releaseCmd.Flags().StringVarP(&releaseOutput, "output", "o", "",
		"manifest output path (default: "+selfupdate.ManifestFilename+")")

	rootCmd.AddCommand(releaseCmd)
}
