package cache

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/fasthash/fnv1"

	"github.com/ironsheep/pixel-cache/internal/exception"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// ditherSpread is the width of the jitter window of the dither method.
const ditherSpread = 64

// GetVirtualPixels returns read-only pixels of region, which may extend past
// the image or lie entirely outside it. Pixels outside the image are
// synthesized by method; background is used by the methods that fill with
// the image background.
func (c *Cache) GetVirtualPixels(method pixel.VirtualMethod, background pixel.Info, region pixel.Region,
	n *Nexus, ex *exception.Exception) ([]pixel.Quantum, error) {
	start := time.Now()
	p, err := c.lockedVirtual(method, background, region, n)
	metrics.RecordRequest("get_virtual", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fail(ex, "UnableToGetVirtualPixels", err)
	}
	return p, nil
}

func (c *Cache) lockedVirtual(method pixel.VirtualMethod, background pixel.Info, region pixel.Region, n *Nexus) ([]pixel.Quantum, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.virtual(method, background, region, n)
}

// addressable reports whether every coordinate of region and its staging
// buffer size fit in an int.
func (c *Cache) addressable(region pixel.Region) bool {
	if !region.Addressable() {
		return false
	}
	per := c.info.Channels() + c.info.MetacontentExtent
	return region.Len() <= math.MaxInt/per
}

func (c *Cache) virtual(method pixel.VirtualMethod, background pixel.Info, region pixel.Region, n *Nexus) ([]pixel.Quantum, error) {
	if err := c.checkNexus(n); err != nil {
		return nil, err
	}
	if region.Empty() {
		n.reset()
		return nil, errors.Wrapf(ErrRegion, "empty region %s", region)
	}
	if !c.addressable(region) {
		n.reset()
		return nil, errors.Wrapf(ErrRegion, "region %s overflows", region)
	}
	if region.Within(c.info.Columns, c.info.Rows) {
		p, err := c.queue(region, n)
		if err == nil && !n.direct {
			if err = c.readRegion(region, n.pixels, n.meta); err != nil {
				n.reset()
				return nil, err
			}
		}
		return p, err
	}

	n.stage(region, c.info.Channels(), c.info.MetacontentExtent)
	s := synthesizer{
		cache:  c,
		method: method,
		fill:   make([]pixel.Quantum, c.info.Channels()),
	}
	fillColor(method, background).Encode(c.info.Layout, s.fill)

	stride := region.Columns * c.info.Channels()
	mstride := region.Columns * c.info.MetacontentExtent
	for r := 0; r < region.Rows; r++ {
		var meta []byte
		if n.meta != nil {
			meta = n.meta[r*mstride : (r+1)*mstride]
		}
		if err := s.row(region.X, region.Y+r, region.Columns, n.pixels[r*stride:(r+1)*stride], meta); err != nil {
			n.reset()
			return nil, err
		}
	}
	metrics.RecordTransfer("virtual", region.Len())
	return n.pixels, nil
}

// fillColor returns the constant color method uses outside the image.
func fillColor(method pixel.VirtualMethod, background pixel.Info) pixel.Info {
	switch method {
	case pixel.BlackVirtualPixelMethod:
		return pixel.BlackColor
	case pixel.GrayVirtualPixelMethod:
		return pixel.GrayColor
	case pixel.WhiteVirtualPixelMethod:
		return pixel.WhiteColor
	case pixel.TransparentVirtualPixelMethod:
		return pixel.TransparentColor
	}
	return background
}

type synthesizer struct {
	cache  *Cache
	method pixel.VirtualMethod
	fill   []pixel.Quantum
}

// row fills one row of n pixels starting at (x, y). In-image runs are read
// in one request; the rest pixel by pixel.
func (s *synthesizer) row(x, y, n int, dst []pixel.Quantum, meta []byte) error {
	info := s.cache.info
	channels := info.Channels()
	extent := info.MetacontentExtent

	lo, hi := 0, 0
	if y >= 0 && y < info.Rows {
		lo = clamp(-x, 0, n)
		hi = clamp(info.Columns-x, lo, n)
		if hi > lo {
			if err := s.cache.store.readPixels(x+lo, y, hi-lo, dst[lo*channels:]); err != nil {
				return err
			}
			if meta != nil {
				if err := s.cache.store.readMeta(x+lo, y, hi-lo, meta[lo*extent:]); err != nil {
					return err
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		if i >= lo && i < hi {
			continue
		}
		px := dst[i*channels : (i+1)*channels]
		var pm []byte
		if meta != nil {
			pm = meta[i*extent : (i+1)*extent]
		}
		sx, sy, ok := mapVirtual(s.method, x+i, y, info.Columns, info.Rows)
		if !ok {
			copy(px, s.fill)
			clear(pm)
			continue
		}
		if err := s.cache.store.readPixels(sx, sy, 1, px); err != nil {
			return err
		}
		if pm != nil {
			if err := s.cache.store.readMeta(sx, sy, 1, pm); err != nil {
				return err
			}
		}
	}
	return nil
}

// mapVirtual maps an out-of-image coordinate to the in-image pixel method
// reads from. ok is false when method yields its fill color instead.
func mapVirtual(method pixel.VirtualMethod, x, y, columns, rows int) (sx, sy int, ok bool) {
	switch method {
	case pixel.BackgroundVirtualPixelMethod, pixel.TransparentVirtualPixelMethod,
		pixel.BlackVirtualPixelMethod, pixel.GrayVirtualPixelMethod, pixel.WhiteVirtualPixelMethod:
		return 0, 0, false
	case pixel.MirrorVirtualPixelMethod:
		return mirror(x, columns), mirror(y, rows), true
	case pixel.TileVirtualPixelMethod:
		return mod(x, columns), mod(y, rows), true
	case pixel.HorizontalTileVirtualPixelMethod:
		if y < 0 || y >= rows {
			return 0, 0, false
		}
		return mod(x, columns), y, true
	case pixel.VerticalTileVirtualPixelMethod:
		if x < 0 || x >= columns {
			return 0, 0, false
		}
		return x, mod(y, rows), true
	case pixel.HorizontalTileEdgeVirtualPixelMethod:
		return mod(x, columns), clamp(y, 0, rows-1), true
	case pixel.VerticalTileEdgeVirtualPixelMethod:
		return clamp(x, 0, columns-1), mod(y, rows), true
	case pixel.CheckerTileVirtualPixelMethod:
		if (floorDiv(x, columns)+floorDiv(y, rows))&1 != 0 {
			return 0, 0, false
		}
		return mod(x, columns), mod(y, rows), true
	case pixel.RandomVirtualPixelMethod:
		h := coordHash(x, y)
		return int(h % uint64(columns)), int((h >> 32) % uint64(rows)), true
	case pixel.DitherVirtualPixelMethod:
		h := coordHash(x, y)
		dx := int(h%ditherSpread) - ditherSpread/2
		dy := int((h>>32)%ditherSpread) - ditherSpread/2
		return clamp(x+dx, 0, columns-1), clamp(y+dy, 0, rows-1), true
	}
	// Undefined and Edge.
	return clamp(x, 0, columns-1), clamp(y, 0, rows-1), true
}

func coordHash(x, y int) uint64 {
	return fnv1.AddUint64(fnv1.HashUint64(uint64(int64(x))), uint64(int64(y)))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	return a - floorDiv(a, b)*b
}

// mirror reflects a with period 2*size: ... 1 0 | 0 1 ... size-1 | size-1 ...
func mirror(a, size int) int {
	r := mod(a, size)
	if floorDiv(a, size)&1 != 0 {
		return size - 1 - r
	}
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
