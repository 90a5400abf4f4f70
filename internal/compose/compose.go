package compose

import (
	"context"
	"strconv"
	"time"
)

// Runner executes compose plugin operations against a project.
// All commands run with the project directory as working directory so that
// relative paths and .env files resolve the way compose expects.
type Runner struct{}

// NewRunner returns a Runner for the compose plugin found on PATH.
func NewRunner() *Runner {
	return &Runner{}
}

// composeArgs assembles the common "compose -f ..." prefix for a project.
func (r *Runner) composeArgs(project Project, sub ...string) []string {
	args := append([]string{"compose"}, project.fileArgs()...)

	return append(args, sub...)
}

// ImageIDs returns the identifiers of the images used by the project's
// containers. Projects that have never been started report none.
func (r *Runner) ImageIDs(ctx context.Context, project Project) ([]string, error) {
	out, err := capture(ctx, project.Dir, r.composeArgs(project, "images", "--quiet")...)
	if err != nil {
		return nil, err
	}

	return splitLines(out), nil
}

// ContainerIDs returns the identifiers of the project's containers,
// including stopped ones.
func (r *Runner) ContainerIDs(ctx context.Context, project Project) ([]string, error) {
	out, err := capture(ctx, project.Dir, r.composeArgs(project, "ps", "--quiet", "--all")...)
	if err != nil {
		return nil, err
	}

	return splitLines(out), nil
}

// RenderConfig returns the project's merged configuration with all
// descriptors, extends clauses and variable interpolations applied.
func (r *Runner) RenderConfig(ctx context.Context, project Project) (string, error) {
	return capture(ctx, project.Dir, r.composeArgs(project, "config")...)
}

// Build rebuilds the project's images from scratch, bypassing the layer cache.
func (r *Runner) Build(ctx context.Context, project Project) error {
	return stream(ctx, project.Dir, r.composeArgs(project, "build", "--no-cache")...)
}

// Pull fetches the latest images for the project's services.
func (r *Runner) Pull(ctx context.Context, project Project) error {
	return stream(ctx, project.Dir, r.composeArgs(project, "pull")...)
}

// Down stops and removes the project's containers along with orphans left
// behind by previous descriptor revisions. The timeout bounds the graceful
// shutdown period before containers are killed.
func (r *Runner) Down(ctx context.Context, project Project, timeout time.Duration) error {
	seconds := strconv.Itoa(int(timeout.Seconds()))

	return stream(ctx, project.Dir, r.composeArgs(project, "down", "--timeout", seconds, "--remove-orphans")...)
}

// Up starts the project's containers in the background.
func (r *Runner) Up(ctx context.Context, project Project) error {
	return stream(ctx, project.Dir, r.composeArgs(project, "up", "--detach")...)
}
