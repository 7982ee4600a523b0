package cache

import (
	"github.com/pkg/errors"

	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// Nexus is one worker's cursor into a cache: the region of its latest
// request and the pixels backing it.
type Nexus struct {
	region   pixel.Region
	pixels   []pixel.Quantum
	meta     []byte
	buffer   []pixel.Quantum
	metaBuf  []byte
	direct   bool
	released bool
}

// Region returns the region of the latest request.
func (n *Nexus) Region() pixel.Region { return n.region }

// Extent returns the number of pixels in the latest request.
func (n *Nexus) Extent() int { return n.region.Len() }

// Pixels returns the pixels of the latest request.
func (n *Nexus) Pixels() []pixel.Quantum { return n.pixels }

// Metacontent returns the metacontent of the latest request, or nil when the
// cache has none.
func (n *Nexus) Metacontent() []byte { return n.meta }

// Direct reports whether the latest request aliases cache storage.
func (n *Nexus) Direct() bool { return n.direct }

// Released reports whether the nexus belongs to a destroyed array.
func (n *Nexus) Released() bool { return n.released }

func (n *Nexus) reset() {
	n.region = pixel.Region{}
	n.pixels = nil
	n.meta = nil
	n.direct = false
}

// stage points the nexus at its own buffers, sized for region.
func (n *Nexus) stage(region pixel.Region, channels, extent int) {
	need := region.Len() * channels
	if cap(n.buffer) < need {
		n.buffer = make([]pixel.Quantum, need)
	}
	n.buffer = n.buffer[:need]
	n.pixels = n.buffer
	n.meta = nil
	if extent > 0 {
		m := region.Len() * extent
		if cap(n.metaBuf) < m {
			n.metaBuf = make([]byte, m)
		}
		n.metaBuf = n.metaBuf[:m]
		n.meta = n.metaBuf
	}
	n.region = region
	n.direct = false
}

// AcquireNexusArray allocates n independent nexuses for use with this cache.
func (c *Cache) AcquireNexusArray(n int) ([]*Nexus, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrNexusAllocation, "%d threads", n)
	}
	if c.opts.ThreadLimit > 0 && n > c.opts.ThreadLimit {
		return nil, errors.Wrapf(ErrNexusAllocation, "%d threads exceeds thread limit %d", n, c.opts.ThreadLimit)
	}
	if c.Closed() {
		return nil, errors.Wrap(ErrNexusAllocation, ErrClosed.Error())
	}
	nexus := make([]*Nexus, n)
	for i := range nexus {
		nexus[i] = &Nexus{}
	}
	return nexus, nil
}

// DestroyNexusArray releases the buffers of every nexus in the array. The
// nexuses must not be used afterwards.
func DestroyNexusArray(nexus []*Nexus) {
	for _, n := range nexus {
		if n == nil {
			continue
		}
		n.reset()
		n.buffer = nil
		n.metaBuf = nil
		n.released = true
	}
}
