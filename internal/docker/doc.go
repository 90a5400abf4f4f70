// Package docker wraps the Docker Engine API client used by the updater to
// inspect images and containers and to reclaim disk space after updates.
package docker
