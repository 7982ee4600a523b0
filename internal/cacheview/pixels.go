package cacheview

import (
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// GetAuthenticPixels returns writable pixels of the region, loaded from the
// cache. The region must lie inside the image.
func (v *CacheView) GetAuthenticPixels(id, x, y, columns, rows int) ([]pixel.Quantum, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	region := pixel.Region{X: x, Y: y, Columns: columns, Rows: rows}
	v.trace("get_authentic", id, region)
	return v.image.Cache().GetAuthenticPixels(region, v.nexus(id), v.image.Exception())
}

// QueueAuthenticPixels returns a writable buffer for the region without
// loading its current contents. Every pixel must be written before
// SyncAuthenticPixels.
func (v *CacheView) QueueAuthenticPixels(id, x, y, columns, rows int) ([]pixel.Quantum, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	region := pixel.Region{X: x, Y: y, Columns: columns, Rows: rows}
	v.trace("queue_authentic", id, region)
	return v.image.Cache().QueueAuthenticPixels(region, v.nexus(id), v.image.Exception())
}

// SyncAuthenticPixels commits the worker's latest authentic region.
func (v *CacheView) SyncAuthenticPixels(id int) error {
	if err := v.check(); err != nil {
		return err
	}
	n := v.nexus(id)
	v.trace("sync_authentic", id, n.Region())
	return v.image.Cache().SyncAuthenticPixels(n, v.image.Exception())
}

// GetAuthenticPixelQueue returns the pixels of the worker's latest request
// without fetching again.
func (v *CacheView) GetAuthenticPixelQueue(id int) []pixel.Quantum {
	v.mustCheck()
	return v.nexus(id).Pixels()
}

// GetAuthenticMetacontent returns the metacontent of the worker's latest
// request, or nil when the image has none.
func (v *CacheView) GetAuthenticMetacontent(id int) []byte {
	v.mustCheck()
	return v.nexus(id).Metacontent()
}

// GetOneAuthenticPixel returns the pixel at (x, y). On failure it returns
// the background color and false.
func (v *CacheView) GetOneAuthenticPixel(id, x, y int) (pixel.Info, bool) {
	v.mustCheck()
	q, err := v.GetAuthenticPixels(id, x, y, 1, 1)
	if err != nil {
		return v.image.BackgroundColor(), false
	}
	return v.decode(q), true
}

// GetVirtualPixels returns read-only pixels of the region, which may lie
// partly or wholly outside the image.
func (v *CacheView) GetVirtualPixels(id, x, y, columns, rows int) ([]pixel.Quantum, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return v.virtual(id, v.VirtualPixelMethod(), x, y, columns, rows)
}

func (v *CacheView) virtual(id int, method pixel.VirtualMethod, x, y, columns, rows int) ([]pixel.Quantum, error) {
	region := pixel.Region{X: x, Y: y, Columns: columns, Rows: rows}
	v.trace("get_virtual", id, region)
	return v.image.Cache().GetVirtualPixels(method, v.image.BackgroundColor(), region, v.nexus(id), v.image.Exception())
}

// GetVirtualPixelQueue returns the pixels of the worker's latest request
// without fetching again. The slice must not be written.
func (v *CacheView) GetVirtualPixelQueue(id int) []pixel.Quantum {
	v.mustCheck()
	return v.nexus(id).Pixels()
}

// GetVirtualMetacontent returns the metacontent of the worker's latest
// request. The slice must not be written.
func (v *CacheView) GetVirtualMetacontent(id int) []byte {
	v.mustCheck()
	return v.nexus(id).Metacontent()
}

// GetOneVirtualPixel returns the pixel at (x, y) under the view's virtual
// pixel method. On failure it returns the background color and false.
func (v *CacheView) GetOneVirtualPixel(id, x, y int) (pixel.Info, bool) {
	v.mustCheck()
	return v.GetOneVirtualMethodPixel(id, v.VirtualPixelMethod(), x, y)
}

// GetOneVirtualMethodPixel is GetOneVirtualPixel with an explicit method.
func (v *CacheView) GetOneVirtualMethodPixel(id int, method pixel.VirtualMethod, x, y int) (pixel.Info, bool) {
	v.mustCheck()
	q, err := v.virtual(id, method, x, y, 1, 1)
	if err != nil {
		return v.image.BackgroundColor(), false
	}
	return v.decode(q), true
}

func (v *CacheView) decode(q []pixel.Quantum) pixel.Info {
	var p pixel.Info
	p.Decode(v.image.Layout(), q)
	if cs := v.image.Colorspace(); cs != pixel.UndefinedColorspace {
		p.Colorspace = cs
	}
	return p
}
