package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/compose-updater/internal/compose"
	"github.com/oshokin/compose-updater/internal/config"
	"github.com/oshokin/compose-updater/internal/docker"
	"github.com/oshokin/compose-updater/internal/logger"
	"github.com/oshokin/compose-updater/internal/registry"
)

// Options are inputs accepted by the updater entry point. Zero values defer
// to the settings file and its defaults.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Root overrides the services root directory.
	Root string
	// Containers is an explicit list of services to update, bypassing
	// directory discovery.
	Containers []string
	// Exclude removes services from the run by exact name.
	Exclude []string
	// Force restarts services even when their images did not change.
	Force bool
	// Immediate restarts and prunes after each changed service instead of
	// batching restarts at the end.
	Immediate bool
	// KeepGoing records per-service failures and continues with the
	// remaining services instead of aborting the batch.
	KeepGoing bool
	// StopTimeout overrides the graceful shutdown period, zero keeps the
	// configured value.
	StopTimeout time.Duration
	// Schedule is a cron expression; when set the batch repeats on it.
	Schedule string
	// LogLevel overrides the configured log verbosity.
	LogLevel string
}

// composeRunner is the slice of the compose plugin the batch needs.
type composeRunner interface {
	ImageIDs(ctx context.Context, project compose.Project) ([]string, error)
	HasBuildDirective(ctx context.Context, project compose.Project) (bool, error)
	Build(ctx context.Context, project compose.Project) error
	Pull(ctx context.Context, project compose.Project) error
	Down(ctx context.Context, project compose.Project, timeout time.Duration) error
	Up(ctx context.Context, project compose.Project) error
	ContainerIDs(ctx context.Context, project compose.Project) ([]string, error)
}

// engineClient is the slice of the Engine API the batch needs.
type engineClient interface {
	ImageTags(ctx context.Context, imageID string) ([]string, error)
	ImageVersion(ctx context.Context, imageID string) (string, error)
	ContainerState(ctx context.Context, containerID string) (string, error)
	PruneAll(ctx context.Context)
	Close() error
}

// runner holds the collaborators and resolved settings of one updater
// execution. It is unexported, callers go through Run.
type runner struct {
	opts        *Options
	cfg         *config.Config
	root        string
	stopTimeout time.Duration
	schedule    string
	exclude     []string
	compose     composeRunner
	docker      engineClient
	marker      string
}

// Run executes the updater lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "compose-updater")

	r, err := newRunner(ctx, opts)
	if err != nil {
		r.cleanup(ctx)
		return err
	}

	defer r.cleanup(ctx)

	if r.schedule != "" {
		return r.runOnSchedule(ctx)
	}

	return r.runOnce(ctx)
}

// newRunner resolves settings, claims the instance marker and connects to
// the Docker daemon.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	r := &runner{opts: opts}

	cfg, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return r, err
	}

	r.cfg = cfg

	applyLogLevel(opts.LogLevel, cfg.LogLevel)

	r.root, err = resolveRoot(opts.Root, cfg.RootDir)
	if err != nil {
		return r, err
	}

	r.stopTimeout = opts.StopTimeout
	if r.stopTimeout <= 0 {
		r.stopTimeout = cfg.StopTimeout
	}

	r.schedule = opts.Schedule
	if r.schedule == "" {
		r.schedule = cfg.Schedule
	}

	r.exclude = append(append([]string{}, cfg.Exclude...), opts.Exclude...)

	r.marker, err = acquireMarker(ctx, r.root)
	if err != nil {
		return r, err
	}

	r.compose = compose.NewRunner()

	r.docker, err = docker.NewClient(ctx)
	if err != nil {
		return r, err
	}

	logger.InfoKV(ctx, "Updater ready",
		"root", r.root,
		"stop_timeout", r.stopTimeout.String(),
		"force", opts.Force,
		"immediate", opts.Immediate)

	return r, nil
}

// cleanup releases whatever newRunner managed to set up.
func (r *runner) cleanup(ctx context.Context) {
	releaseMarker(r.marker)

	if r.docker != nil {
		if err := r.docker.Close(); err != nil {
			logger.Warnf(ctx, "Could not close docker client: %s", err)
		}
	}
}

// loadSettings loads the settings file. With no explicit path the default
// location is tried and its absence falls back to built-in defaults.
func loadSettings(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}

	if path == "" && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}

	return nil, err
}

// applyLogLevel applies the flag level, falling back to the configured one.
func applyLogLevel(flag, configured string) {
	raw := flag
	if raw == "" {
		raw = configured
	}

	if level, ok := logger.ParseLogLevel(raw); ok {
		logger.SetLevel(level)
	}
}

// resolveRoot picks the services root: flag first, then settings, then the
// directory of the running executable.
func resolveRoot(flag, configured string) (string, error) {
	root := flag
	if root == "" {
		root = configured
	}

	if root == "" {
		executable, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}

		root = filepath.Dir(executable)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve services root: %w", err)
	}

	return root, nil
}

// runOnce performs one full batch: discover, authenticate, refresh, restart
// and clean up.
func (r *runner) runOnce(ctx context.Context) error {
	projects, err := compose.Discover(ctx, r.root, r.opts.Containers, r.exclude)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		logger.Warnf(ctx, "No services to update under %s", r.root)
		return nil
	}

	session, err := r.authenticate(ctx)
	if err != nil {
		return err
	}

	report := new(Report)

	queue, err := r.refreshAll(ctx, projects, report)
	if err != nil {
		return err
	}

	if err = r.restartQueued(ctx, queue, report); err != nil {
		return err
	}

	r.finish(ctx, session)

	if r.opts.KeepGoing {
		report.Log(ctx)
	}

	return report.Err()
}

// authenticate logs into every registry listed in the credentials file next
// to the services root. Any login failure aborts the run before services
// are touched.
func (r *runner) authenticate(ctx context.Context) (*registry.Session, error) {
	creds, err := registry.LoadCredentials(filepath.Join(r.root, config.CredentialsFilename))
	if err != nil {
		return nil, err
	}

	session, err := registry.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("registry authentication: %w", err)
	}

	return session, nil
}

// refreshAll refreshes every service and returns the ones queued for a
// batched restart. In immediate mode a changed service is restarted and
// resources are pruned before the next service is touched.
func (r *runner) refreshAll(ctx context.Context, projects []compose.Project, report *Report) ([]compose.Project, error) {
	queue := make([]compose.Project, 0, len(projects))

	for _, project := range projects {
		restart, err := r.refreshService(ctx, project)
		if err != nil {
			err = fmt.Errorf("refresh %s: %w", project.Name, err)

			if !r.opts.KeepGoing {
				return nil, err
			}

			report.Failed(project.Name, err)

			continue
		}

		if !restart {
			report.UpToDate(project.Name)
			continue
		}

		if !r.opts.Immediate {
			queue = append(queue, project)
			continue
		}

		if err = r.restartService(ctx, project); err != nil {
			err = fmt.Errorf("restart %s: %w", project.Name, err)

			if !r.opts.KeepGoing {
				return nil, err
			}

			report.Failed(project.Name, err)

			continue
		}

		report.Restarted(project.Name)
		r.docker.PruneAll(ctx)
	}

	return queue, nil
}

// restartQueued drains the restart queue in discovery order.
func (r *runner) restartQueued(ctx context.Context, queue []compose.Project, report *Report) error {
	for _, project := range queue {
		if err := r.restartService(ctx, project); err != nil {
			err = fmt.Errorf("restart %s: %w", project.Name, err)

			if !r.opts.KeepGoing {
				return err
			}

			report.Failed(project.Name, err)

			continue
		}

		report.Restarted(project.Name)
	}

	return nil
}

// finish runs the cleanup phase: registry logout, then pruning.
func (r *runner) finish(ctx context.Context, session *registry.Session) {
	session.Logout(ctx)
	r.docker.PruneAll(ctx)
}

// refreshService brings a service's images up to date and reports whether a
// restart is warranted.
func (r *runner) refreshService(ctx context.Context, project compose.Project) (bool, error) {
	logger.Infof(ctx, "Processing %s", project.Name)

	before, err := r.imageSnapshot(ctx, project)
	if err != nil {
		return false, err
	}

	if err = r.refreshImages(ctx, project); err != nil {
		return false, err
	}

	after, err := r.imageSnapshot(ctx, project)
	if err != nil {
		return false, err
	}

	changed := !before.Equal(after)

	switch {
	case changed:
		r.logImageChange(ctx, project, before, after)
	case r.opts.Force:
		logger.Infof(ctx, "%s is unchanged, restarting anyway", project.Name)
	default:
		logger.Infof(ctx, "%s is up to date", project.Name)
	}

	return changed || r.opts.Force, nil
}

// refreshImages rebuilds locally built projects and pulls the rest.
func (r *runner) refreshImages(ctx context.Context, project compose.Project) error {
	build, err := r.compose.HasBuildDirective(ctx, project)
	if err != nil {
		return err
	}

	if build {
		logger.Infof(ctx, "Building %s without cache", project.Name)
		return r.compose.Build(ctx, project)
	}

	logger.Infof(ctx, "Pulling latest images for %s", project.Name)

	return r.compose.Pull(ctx, project)
}

// imageSnapshot captures the multiset of the project's image identifiers.
// Identifiers without a resolvable tag (dangling layers of rebuilt or
// superseded images) are excluded from comparison.
func (r *runner) imageSnapshot(ctx context.Context, project compose.Project) (imageSet, error) {
	ids, err := r.compose.ImageIDs(ctx, project)
	if err != nil {
		return nil, err
	}

	set := newImageSet()

	for _, id := range ids {
		tags, err := r.docker.ImageTags(ctx, id)
		if err != nil {
			logger.Warnf(ctx, "Could not resolve tags of %s, excluding it from comparison: %s", id, err)
			continue
		}

		if len(tags) == 0 {
			logger.Debugf(ctx, "Image %s has no tags, excluding it from comparison", id)
			continue
		}

		set.Add(id)
	}

	return set, nil
}

// logImageChange reports what a changed service moved to.
func (r *runner) logImageChange(ctx context.Context, project compose.Project, before, after imageSet) {
	logger.InfoKV(ctx, "Image change detected",
		"service", project.Name,
		"images_before", before.Size(),
		"images_after", after.Size())

	for id := range after {
		if _, known := before[id]; known {
			continue
		}

		version, err := r.docker.ImageVersion(ctx, id)
		if err != nil || version == "" {
			continue
		}

		logger.Infof(ctx, "%s now uses version %s", project.Name, version)
	}
}

// restartService stops and removes the service's containers, orphans
// included, and starts them again detached.
func (r *runner) restartService(ctx context.Context, project compose.Project) error {
	logger.Infof(ctx, "Restarting %s", project.Name)

	if err := r.compose.Down(ctx, project, r.stopTimeout); err != nil {
		return err
	}

	if err := r.compose.Up(ctx, project); err != nil {
		return err
	}

	r.verifyService(ctx, project)

	return nil
}

// verifyService checks container states after a restart. Problems are
// logged, never fatal.
func (r *runner) verifyService(ctx context.Context, project compose.Project) {
	ids, err := r.compose.ContainerIDs(ctx, project)
	if err != nil {
		logger.Warnf(ctx, "Could not list containers of %s: %s", project.Name, err)
		return
	}

	for _, id := range ids {
		state, err := r.docker.ContainerState(ctx, id)
		if err != nil {
			logger.Warnf(ctx, "Could not check container %s: %s", id, err)
			continue
		}

		if state != "running" {
			logger.WarnKV(ctx, "Container is not running after restart",
				"service", project.Name,
				"container", id,
				"state", state)
		}
	}
}
