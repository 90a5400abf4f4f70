package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/compose-updater/internal/config"
	"github.com/oshokin/compose-updater/internal/service/updater"
	"github.com/oshokin/compose-updater/internal/version"
)

var (
	// containers is the explicit list of services to update.
	containers []string
	// exclude lists services to leave out of the run.
	exclude []string
	// force re-creates containers even when their images did not change.
	force bool
	// immediate restarts and prunes per service instead of batching.
	immediate bool
	// keepGoing continues past per-service failures.
	keepGoing bool
	// stopTimeoutSeconds bounds the graceful shutdown of `down`.
	stopTimeoutSeconds int
	// rootDir overrides the services root directory.
	rootDir string
	// configPath to the settings YAML file.
	configPath string
	// schedule repeats the run on a cron expression.
	schedule string
	// logLevel overrides the configured log verbosity.
	logLevel string

	// rootCmd represents the base command that runs the update batch.
	rootCmd = &cobra.Command{
		Use:   "compose-updater",
		Short: "Update and restart Docker Compose services when their images change",
		Long: `Walks a directory of Docker Compose services, refreshes the images of every
service (build without cache when the merged config declares a build, pull
otherwise) and restarts exactly the services whose image set changed.

Registry logins from a ` + config.CredentialsFilename + ` file next to the services are
opened before the batch and closed after it. Unused images, volumes, build
cache and networks are pruned at the end of the run.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPath:  configPath,
				Root:        rootDir,
				Containers:  containers,
				Exclude:     exclude,
				Force:       force,
				Immediate:   immediate,
				KeepGoing:   keepGoing,
				StopTimeout: time.Duration(stopTimeoutSeconds) * time.Second,
				Schedule:    schedule,
				LogLevel:    logLevel,
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the compose-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringSliceVarP(&containers, "containers", "c", nil,
		"comma-separated list of services to update (default: all discovered)")
	rootCmd.Flags().StringSliceVarP(&exclude, "exclude", "e", nil,
		"comma-separated list of services to skip")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false,
		"re-create containers even when their images did not change")
	rootCmd.Flags().BoolVarP(&immediate, "immediate", "i", false,
		"restart and prune right after each changed service")
	rootCmd.Flags().IntVarP(&stopTimeoutSeconds, "timeout", "t", 0,
		"graceful shutdown period in seconds (default: settings value or 60)")
	rootCmd.Flags().StringVarP(&rootDir, "root", "r", "",
		"services root directory (default: settings value or the binary's directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to settings file (default: "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().BoolVar(&keepGoing, "keep-going", false,
		"record per-service failures and continue with the remaining services")
	rootCmd.Flags().StringVarP(&schedule, "schedule", "s", "",
		"cron expression to repeat the update run on")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "",
		"minimum log level: debug, info, warn or error")
}
