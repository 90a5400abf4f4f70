package compose

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/compose-updater/internal/logger"
)

// The patterns match horizontal whitespace only, a directive is recognized
// by its indentation on its own line.
var (
	buildDirectivePattern   = regexp.MustCompile(`(?m)^[ \t]*build:`)
	commentedBuildDirective = regexp.MustCompile(`(?m)^[ \t]*#.*build:`)
)

// HasBuildDirective reports whether the project builds at least one of its
// images locally instead of pulling them. The merged configuration rendered
// by the compose plugin is the authoritative source. When rendering fails
// (for example because referenced variables are unset), the raw base
// descriptor is inspected instead: the project counts as locally built when
// it contains more active build directives than commented-out ones.
func (r *Runner) HasBuildDirective(ctx context.Context, project Project) (bool, error) {
	rendered, err := r.RenderConfig(ctx, project)
	if err == nil {
		logger.Debugf(ctx, "%s defines services: %s",
			project.Name, strings.Join(ServiceNames(rendered), ", "))

		return buildDirectivePattern.MatchString(rendered), nil
	}

	logger.WarnKV(ctx, "Merged config could not be rendered, inspecting raw descriptor",
		"service", project.Name,
		"error", err)

	return rawBuildDirective(project.ComposeFile)
}

func rawBuildDirective(path string) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read descriptor: %w", err)
	}

	active := len(buildDirectivePattern.FindAll(contents, -1))
	commented := len(commentedBuildDirective.FindAll(contents, -1))

	return active > commented, nil
}

// renderedConfig is the slice of the merged configuration the updater
// cares about.
type renderedConfig struct {
	Services map[string]struct {
		Image string `yaml:"image"`
	} `yaml:"services"`
}

// ServiceNames extracts the sorted service names from a rendered merged
// configuration. Unparseable input yields no names.
func ServiceNames(rendered string) []string {
	var cfg renderedConfig
	if err := yaml.Unmarshal([]byte(rendered), &cfg); err != nil {
		return nil
	}

	names := make([]string, 0, len(cfg.Services))
	for name := range cfg.Services {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
