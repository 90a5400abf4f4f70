package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/oshokin/compose-updater/internal/logger"
)

// dockerBinary is the engine CLI; compose runs as its plugin subcommand.
// Commands are spawned directly, never through a shell.
const dockerBinary = "docker"

// capture runs the docker binary and returns its trimmed stdout.
func capture(ctx context.Context, dir string, args ...string) (string, error) {
	logger.Debugf(ctx, "+ %s %s", dockerBinary, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, dockerBinary, args...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return "", commandError(args, err)
	}

	return strings.TrimSpace(string(out)), nil
}

// stream runs the docker binary with the child's output attached to the
// terminal, keeping build and pull progress visible to the operator.
func stream(ctx context.Context, dir string, args ...string) error {
	logger.Debugf(ctx, "+ %s %s", dockerBinary, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, dockerBinary, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return commandError(args, err)
	}

	return nil
}

// commandError decorates a child process failure with the failed command line
// and any stderr collected by Output.
func commandError(args []string, err error) error {
	command := dockerBinary + " " + strings.Join(args, " ")

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%s: %w: %s", command, err, strings.TrimSpace(string(exitErr.Stderr)))
	}

	return fmt.Errorf("%s: %w", command, err)
}

// splitLines turns captured multi-line output into a slice,
// dropping empty lines.
func splitLines(out string) []string {
	if out == "" {
		return nil
	}

	raw := strings.Split(out, "\n")
	lines := make([]string, 0, len(raw))

	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}
