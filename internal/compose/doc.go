// Package compose models the service directories managed by the updater and
// wraps the `docker compose` plugin invocations used against them.
//
// A Project is one subdirectory of the services root holding a base
// docker-compose.yaml and, optionally, an override descriptor. All compose
// operations (images, config, build, pull, down, up, ps) run against the
// merged descriptor set of a project and block until the child process exits.
package compose
