package cache

import "github.com/pkg/errors"

var (
	// ErrNexusAllocation is returned when a nexus array cannot be allocated.
	ErrNexusAllocation = errors.New("unable to allocate cache nexus")

	// ErrResourceLimit is returned when an image exceeds the configured
	// memory and disk limits.
	ErrResourceLimit = errors.New("pixel cache resource limit exceeded")

	// ErrRegion is returned for authentic requests outside the image.
	ErrRegion = errors.New("region is outside the pixel cache")

	// ErrNoRegion is returned when syncing a nexus that holds no region.
	ErrNoRegion = errors.New("nexus holds no region")

	// ErrClosed is returned for requests on a closed cache.
	ErrClosed = errors.New("pixel cache is closed")

	// ErrInvalidInfo is returned by New for a malformed Info.
	ErrInvalidInfo = errors.New("invalid pixel cache geometry")

	// ErrNexusReleased is returned for requests on a destroyed nexus.
	ErrNexusReleased = errors.New("nexus has been released")
)
