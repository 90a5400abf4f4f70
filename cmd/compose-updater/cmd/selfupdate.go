package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/compose-updater/internal/service/selfupdate"
)

var (
	// manifestURL overrides the configured release manifest location.
	manifestURL string
	// reapply installs the release even when versions match.
	reapply bool

	// selfUpdateCmd updates this binary from the published release manifest.
	selfUpdateCmd = &cobra.Command{
		Use:   "self-update",
		Short: "Replace this binary with the latest published release",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &selfupdate.Options{
				ConfigPath:  configPath,
				ManifestURL: manifestURL,
				Force:       reapply,
			}

			return selfupdate.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	selfUpdateCmd.Flags().StringVarP(&manifestURL, "manifest", "m", "",
		"release manifest URL (overrides the settings file)")
	selfUpdateCmd.Flags().BoolVar(&reapply, "force", false,
		"reinstall the release even when its version matches the running one")

	rootCmd.AddCommand(selfUpdateCmd)
}
