package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/compose-updater/internal/logger"
)

const (
	// markerFilename guards a services root against two updaters working on
	// it at the same time.
	markerFilename = ".compose-updater.marker"

	// markerLifetime is the age past which a leftover marker is treated as
	// possibly stale and verified against the process list.
	markerLifetime = time.Minute

	// fallbackExecutable is assumed when the running binary's name cannot
	// be determined.
	fallbackExecutable = "compose-updater"
)

var errAlreadyRunning = errors.New("another updater instance is already running")

// acquireMarker claims the instance marker inside the services root.
// A fresh marker, or a stale one while another updater process is alive,
// means the root is owned by someone else.
func acquireMarker(ctx context.Context, root string) (string, error) {
	path := filepath.Join(root, markerFilename)

	info, err := os.Stat(path)

	switch {
	case err == nil:
		if time.Since(info.ModTime()) <= markerLifetime {
			return "", errAlreadyRunning
		}

		logger.Info(ctx, "Found a stale instance marker, checking for a live updater")

		if isOtherUpdaterRunning() {
			return "", errAlreadyRunning
		}

		if err = os.Remove(path); err != nil {
			return "", fmt.Errorf("remove stale instance marker: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("check instance marker: %w", err)
	}

	marker, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create instance marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return "", fmt.Errorf("close instance marker: %w", err)
	}

	return path, nil
}

// releaseMarker removes the instance marker, tolerating a marker that is
// already gone.
func releaseMarker(path string) {
	if path == "" {
		return
	}

	_ = os.Remove(path)
}

// isOtherUpdaterRunning reports whether a process with this binary's name
// exists besides our own. When the process list cannot be read the answer
// is yes, keeping the single-instance guarantee intact.
func isOtherUpdaterRunning() bool {
	processes, err := ps.Processes()
	if err != nil {
		return true
	}

	self := os.Getpid()
	name := executableName()

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if process.Executable() == name {
			return true
		}
	}

	return false
}

// executableName returns the base name of the running binary.
func executableName() string {
	path, err := os.Executable()
	if err != nil {
		return fallbackExecutable
	}

	return filepath.Base(path)
}
