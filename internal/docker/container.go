package docker

import (
	"context"
	"fmt"
)

// ContainerState returns the lifecycle status of a container as reported by
// the daemon: "created", "running", "restarting", "exited" and so on.
func (c *Client) ContainerState(ctx context.Context, containerID string) (string, error) {
	info, err := c.inner.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	if info.State == nil {
		return "", fmt.Errorf("container %s has no state", containerID)
	}

	return info.State.Status, nil
}
