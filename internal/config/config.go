package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable settings of the updater. Every field has a
// command-line counterpart; flags win over file values.
type Config struct {
	// RootDir is the directory whose subdirectories hold the compose services.
	// Empty means the directory of the running executable.
	RootDir string `yaml:"root"`
	// StopTimeout is how long `docker compose down` waits before killing containers.
	StopTimeout time.Duration `yaml:"shutdown_timeout"`
	// Exclude lists service names that are never processed.
	Exclude []string `yaml:"exclude"`
	// Schedule is an optional cron expression; when set, the batch repeats on it.
	Schedule string `yaml:"schedule"`
	// LogLevel is the minimum level for log output (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// UpdateManifestURL is where the self-update release manifest is hosted.
	UpdateManifestURL string `yaml:"update_manifest"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "compose-updater.yaml"

	// CredentialsFilename is the fixed name of the registry credentials file
	// expected next to the service directories.
	CredentialsFilename = ".docker-update"

	// ComposeFilename is the required base descriptor inside each service directory.
	ComposeFilename = "docker-compose.yaml"

	// ComposeOverrideFilename is the optional override descriptor merged on top
	// of the base one.
	ComposeOverrideFilename = "docker-compose.override.yaml"

	// DefaultStopTimeout is the default shutdown timeout passed to `down`.
	DefaultStopTimeout = 60 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file is reported via os.ErrNotExist so callers can fall back
// to defaults when the file is optional.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for formatting and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if cfg.UpdateManifestURL != "" {
		if _, err := url.ParseRequestURI(cfg.UpdateManifestURL); err != nil {
			return fmt.Errorf("invalid update manifest URI: %w", err)
		}
	}

	return nil
}

// applyDefaults fills zero-valued fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
