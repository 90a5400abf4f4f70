// Package config defines the updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the services root, shutdown timeout, exclusion list,
// optional cron schedule and self-update manifest URL. The settings file is
// optional: every field has a command-line flag, and flags win over the file.
package config
