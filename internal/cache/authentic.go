package cache

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ironsheep/pixel-cache/internal/exception"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// fail throws err into ex as a CacheError and returns it.
func fail(ex *exception.Exception, reason string, err error) error {
	if ex != nil {
		ex.Throw(exception.CacheError, reason, err.Error())
	}
	return err
}

func (c *Cache) checkNexus(n *Nexus) error {
	if n == nil || n.released {
		return ErrNexusReleased
	}
	if c.closed {
		return ErrClosed
	}
	return nil
}

// QueueAuthenticPixels prepares nexus to receive the pixels of region
// without reading their current values. The returned slice holds
// region.Len() pixels in row-major order; its contents are unspecified until
// written. Commit the writes with SyncAuthenticPixels.
func (c *Cache) QueueAuthenticPixels(region pixel.Region, n *Nexus, ex *exception.Exception) ([]pixel.Quantum, error) {
	start := time.Now()
	p, err := c.lockedQueue(region, n)
	metrics.RecordRequest("queue_authentic", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fail(ex, "UnableToQueueAuthenticPixels", err)
	}
	return p, nil
}

func (c *Cache) lockedQueue(region pixel.Region, n *Nexus) ([]pixel.Quantum, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue(region, n)
}

// queue sets up n for region. Callers hold c.mu for reading.
func (c *Cache) queue(region pixel.Region, n *Nexus) ([]pixel.Quantum, error) {
	if err := c.checkNexus(n); err != nil {
		return nil, err
	}
	if !region.Within(c.info.Columns, c.info.Rows) {
		n.reset()
		return nil, errors.Wrapf(ErrRegion, "%s in %dx%d", region, c.info.Columns, c.info.Rows)
	}
	if c.contiguous(region) {
		off := region.Y*c.info.Columns + region.X
		if p, meta, ok := c.store.direct(off, region.Len()); ok {
			n.region = region
			n.pixels = p
			n.meta = meta
			n.direct = true
			return p, nil
		}
	}
	n.stage(region, c.info.Channels(), c.info.MetacontentExtent)
	return n.pixels, nil
}

// contiguous reports whether region occupies one unbroken run of storage.
func (c *Cache) contiguous(region pixel.Region) bool {
	return region.Rows == 1 || (region.X == 0 && region.Columns == c.info.Columns)
}

// GetAuthenticPixels returns writable pixels of region, loaded from storage.
// The region must lie inside the image. Commit writes with
// SyncAuthenticPixels.
func (c *Cache) GetAuthenticPixels(region pixel.Region, n *Nexus, ex *exception.Exception) ([]pixel.Quantum, error) {
	start := time.Now()
	p, err := c.get(region, n)
	metrics.RecordRequest("get_authentic", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fail(ex, "UnableToGetAuthenticPixels", err)
	}
	return p, nil
}

func (c *Cache) get(region pixel.Region, n *Nexus) ([]pixel.Quantum, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, err := c.queue(region, n)
	if err == nil && !n.direct {
		if err = c.readRegion(region, n.pixels, n.meta); err != nil {
			n.reset()
			return nil, err
		}
	}
	return p, err
}

// readRegion copies an in-image region from storage. Callers hold c.mu.
func (c *Cache) readRegion(region pixel.Region, dst []pixel.Quantum, meta []byte) error {
	stride := region.Columns * c.info.Channels()
	mstride := region.Columns * c.info.MetacontentExtent
	for r := 0; r < region.Rows; r++ {
		y := region.Y + r
		if err := c.store.readPixels(region.X, y, region.Columns, dst[r*stride:]); err != nil {
			return err
		}
		if meta != nil {
			if err := c.store.readMeta(region.X, y, region.Columns, meta[r*mstride:]); err != nil {
				return err
			}
		}
	}
	metrics.RecordTransfer("read", region.Len())
	return nil
}

// SyncAuthenticPixels commits the pixels of the latest Get or Queue request
// on n back to storage.
func (c *Cache) SyncAuthenticPixels(n *Nexus, ex *exception.Exception) error {
	start := time.Now()
	err := c.lockedSync(n)
	metrics.RecordRequest("sync_authentic", err, time.Since(start).Seconds())
	if err != nil {
		return fail(ex, "UnableToSyncAuthenticPixels", err)
	}
	return nil
}

func (c *Cache) lockedSync(n *Nexus) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sync(n)
}

func (c *Cache) sync(n *Nexus) error {
	if err := c.checkNexus(n); err != nil {
		return err
	}
	region := n.region
	if region.Empty() {
		return ErrNoRegion
	}
	if n.direct {
		return nil
	}
	if !region.Within(c.info.Columns, c.info.Rows) {
		return errors.Wrapf(ErrRegion, "%s in %dx%d", region, c.info.Columns, c.info.Rows)
	}
	stride := region.Columns * c.info.Channels()
	mstride := region.Columns * c.info.MetacontentExtent
	for r := 0; r < region.Rows; r++ {
		y := region.Y + r
		if err := c.store.writePixels(region.X, y, region.Columns, n.pixels[r*stride:]); err != nil {
			return err
		}
		if n.meta != nil {
			if err := c.store.writeMeta(region.X, y, region.Columns, n.meta[r*mstride:]); err != nil {
				return err
			}
		}
	}
	metrics.RecordTransfer("write", region.Len())
	return nil
}
