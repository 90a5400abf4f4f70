package docker

import (
	"context"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-units"

	"github.com/oshokin/compose-updater/internal/logger"
)

// PruneAll reclaims disk space left behind by updates: dangling images,
// anonymous volumes, the build cache and unused networks.
// Cleanup is best effort, a failed step is logged and never stops the run.
func (c *Client) PruneAll(ctx context.Context) {
	logger.Info(ctx, "Cleaning up unused Docker data")

	var reclaimed uint64

	reclaimed += c.pruneImages(ctx)
	reclaimed += c.pruneVolumes(ctx)
	reclaimed += c.pruneBuildCache(ctx)

	c.pruneNetworks(ctx)

	logger.Infof(ctx, "Total reclaimed space: %s", units.HumanSize(float64(reclaimed)))
}

func (c *Client) pruneImages(ctx context.Context) uint64 {
	report, err := c.inner.ImagesPrune(ctx, filters.NewArgs(filters.Arg("dangling", "true")))
	if err != nil {
		logger.Warnf(ctx, "Could not prune dangling images: %s", err)
		return 0
	}

	logger.InfoKV(ctx, "Pruned dangling images",
		"deleted", len(report.ImagesDeleted),
		"reclaimed", units.HumanSize(float64(report.SpaceReclaimed)))

	return report.SpaceReclaimed
}

func (c *Client) pruneVolumes(ctx context.Context) uint64 {
	// Without filters only anonymous volumes are removed,
	// named volumes with data stay untouched.
	report, err := c.inner.VolumesPrune(ctx, filters.NewArgs())
	if err != nil {
		logger.Warnf(ctx, "Could not prune volumes: %s", err)
		return 0
	}

	logger.InfoKV(ctx, "Pruned anonymous volumes",
		"deleted", len(report.VolumesDeleted),
		"reclaimed", units.HumanSize(float64(report.SpaceReclaimed)))

	return report.SpaceReclaimed
}

func (c *Client) pruneBuildCache(ctx context.Context) uint64 {
	report, err := c.inner.BuildCachePrune(ctx, build.CachePruneOptions{})
	if err != nil {
		logger.Warnf(ctx, "Could not prune build cache: %s", err)
		return 0
	}

	logger.InfoKV(ctx, "Pruned build cache",
		"deleted", len(report.CachesDeleted),
		"reclaimed", units.HumanSize(float64(report.SpaceReclaimed)))

	return report.SpaceReclaimed
}

func (c *Client) pruneNetworks(ctx context.Context) {
	report, err := c.inner.NetworksPrune(ctx, filters.NewArgs())
	if err != nil {
		logger.Warnf(ctx, "Could not prune networks: %s", err)
		return
	}

	logger.InfoKV(ctx, "Pruned unused networks", "deleted", len(report.NetworksDeleted))
}
