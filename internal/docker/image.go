package docker

import (
	"context"
	"fmt"

	"github.com/distribution/reference"
)

// ImageTags returns the repository tags of an image. An image that exists
// only as an untagged layer stack reports no tags.
func (c *Client) ImageTags(ctx context.Context, imageID string) ([]string, error) {
	info, err := c.inner.ImageInspect(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("inspect image %s: %w", imageID, err)
	}

	return info.RepoTags, nil
}

// ImageVersion derives a human-readable version from an image's first
// repository tag, for example "1.27" from "nginx:1.27".
// Untagged images report an empty version.
func (c *Client) ImageVersion(ctx context.Context, imageID string) (string, error) {
	tags, err := c.ImageTags(ctx, imageID)
	if err != nil {
		return "", err
	}

	if len(tags) == 0 {
		return "", nil
	}

	return tagOf(tags[0]), nil
}

// tagOf extracts the tag of an image reference. Parsing the reference keeps
// registry ports out of the result, which a plain colon split would not.
func tagOf(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ref
	}

	if tagged, ok := named.(reference.Tagged); ok {
		return tagged.Tag()
	}

	return ref
}
