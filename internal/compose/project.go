package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/compose-updater/internal/config"
	"github.com/oshokin/compose-updater/internal/logger"
)

// Project is one compose-managed service: a directory with a base descriptor
// and an optional override descriptor.
type Project struct {
	// Name is the service directory name and identifies the service in logs.
	Name string
	// Dir is the absolute path of the service directory.
	Dir string
	// ComposeFile is the absolute path of the base descriptor.
	ComposeFile string
	// OverrideFile is the absolute path of the override descriptor,
	// empty when the service has none.
	OverrideFile string
}

// Files returns the descriptor set of the project, base first.
func (p Project) Files() []string {
	files := []string{p.ComposeFile}
	if p.OverrideFile != "" {
		files = append(files, p.OverrideFile)
	}

	return files
}

// fileArgs renders the descriptor set as `-f` arguments for the compose plugin.
// Later files override earlier ones, which is exactly the merge order we want.
func (p Project) fileArgs() []string {
	args := make([]string, 0, 2*2)
	for _, f := range p.Files() {
		args = append(args, "-f", f)
	}

	return args
}

// Discover resolves the list of projects to process.
//
// With an empty include list it enumerates the immediate subdirectories of
// root in sorted name order, skipping names that contain '.' or '@'
// (hidden directories, versioned checkouts and similar non-service entries).
// A non-empty include list bypasses scanning entirely and is used in the
// given order. The exclude list then removes entries by exact name match.
//
// Candidates without a base descriptor are skipped with a warning; that is
// never fatal and the remaining services are still processed.
func Discover(ctx context.Context, root string, include, exclude []string) ([]Project, error) {
	names, err := candidateNames(root, include)
	if err != nil {
		return nil, err
	}

	names = applyExclusions(names, exclude)

	projects := make([]Project, 0, len(names))

	for _, name := range names {
		dir := filepath.Join(root, name)

		project, ok := probeProject(ctx, name, dir)
		if !ok {
			continue
		}

		projects = append(projects, project)
	}

	return projects, nil
}

// candidateNames returns the service names to consider, either from the
// explicit include list or by scanning the root directory.
func candidateNames(root string, include []string) ([]string, error) {
	if len(include) > 0 {
		names := make([]string, 0, len(include))

		for _, raw := range include {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}

			names = append(names, name)
		}

		return names, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan services root: %w", err)
	}

	// os.ReadDir already sorts by name.
	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.ContainsAny(name, ".@") {
			continue
		}

		names = append(names, name)
	}

	return names, nil
}

// applyExclusions removes excluded names, exact match only.
func applyExclusions(names, exclude []string) []string {
	if len(exclude) == 0 {
		return names
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, raw := range exclude {
		excluded[strings.TrimSpace(raw)] = struct{}{}
	}

	kept := make([]string, 0, len(names))

	for _, name := range names {
		if _, skip := excluded[name]; skip {
			continue
		}

		kept = append(kept, name)
	}

	return kept
}

// probeProject checks the service directory for descriptors and builds the
// Project value. A missing base descriptor disqualifies the service.
func probeProject(ctx context.Context, name, dir string) (Project, bool) {
	composeFile := filepath.Join(dir, config.ComposeFilename)
	if !fileExists(composeFile) {
		logger.Warnf(ctx, "Skipping %s: no %s found", name, config.ComposeFilename)
		return Project{}, false
	}

	project := Project{
		Name:        name,
		Dir:         dir,
		ComposeFile: composeFile,
	}

	if override := filepath.Join(dir, config.ComposeOverrideFilename); fileExists(override) {
		project.OverrideFile = override
	}

	return project, true
}

// fileExists reports whether path is an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
