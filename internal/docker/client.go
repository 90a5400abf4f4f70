package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/client"
)

// pingTimeout bounds the daemon reachability probe so a stopped daemon
// fails fast instead of hanging the whole run.
const pingTimeout = 5 * time.Second

// Client wraps the Engine API client. The wrapper keeps the exposed surface
// down to what the updater actually needs.
type Client struct {
	inner *client.Client
}

// NewClient connects to the Docker daemon using the standard environment
// settings (DOCKER_HOST and friends) and verifies it is responding.
func NewClient(ctx context.Context) (*Client, error) {
	inner, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := inner.Ping(pingCtx); err != nil {
		_ = inner.Close()
		return nil, fmt.Errorf("docker daemon is not responding: %w", err)
	}

	return &Client{inner: inner}, nil
}

// Close releases the connection to the daemon.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}

	return nil
}
