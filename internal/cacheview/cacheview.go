package cacheview

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ironsheep/pixel-cache/internal/cache"
	"github.com/ironsheep/pixel-cache/internal/exception"
	"github.com/ironsheep/pixel-cache/internal/logging"
	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/parallel"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

const (
	signature = 0xabacadab
	poisoned  = 0xdeadbeef
)

var (
	// ErrDestroyed is returned, or panicked with, when a destroyed view is
	// used.
	ErrDestroyed = errors.New("cache view has been destroyed")

	// ErrNexusAllocation is wrapped by Acquire and Clone when the view's
	// nexus arena cannot be allocated.
	ErrNexusAllocation = cache.ErrNexusAllocation
)

// CacheView is a per-image handle holding one nexus per worker.
type CacheView struct {
	image         *magick.Image
	method        atomic.Int32
	numberThreads int
	nexusInfo     []*cache.Nexus
	debug         bool
	signature     uint32
}

// Acquire returns a view over img sized for parallel.MaxConcurrency()
// workers. The view holds a reference to img until Destroy.
func Acquire(img *magick.Image) (*CacheView, error) {
	return AcquireThreads(img, parallel.MaxConcurrency())
}

// AcquireThreads returns a view over img sized for threads workers.
func AcquireThreads(img *magick.Image, threads int) (*CacheView, error) {
	if img == nil {
		panic("cacheview: Acquire of nil image")
	}
	return acquire(img, threads, img.VirtualPixelMethod())
}

func acquire(img *magick.Image, threads int, method pixel.VirtualMethod) (*CacheView, error) {
	img.Reference()
	nexus, err := img.Cache().AcquireNexusArray(threads)
	if err != nil {
		img.Exception().Throw(exception.ResourceLimitFatalError, "MemoryAllocationFailed", err.Error())
		img.Release()
		return nil, fmt.Errorf("unable to acquire cache view: %w", err)
	}
	v := &CacheView{
		image:         img,
		numberThreads: threads,
		nexusInfo:     nexus,
		debug:         logging.DebugEnabled(),
		signature:     signature,
	}
	v.method.Store(int32(method))
	metrics.ViewsActive.Inc()
	if v.debug {
		logging.Logger().Debug("cache view acquired", "threads", threads, "method", method.String())
	}
	return v, nil
}

// Clone returns a new view over the same image with the same thread count
// and virtual pixel method, and a fresh nexus arena.
func (v *CacheView) Clone() (*CacheView, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return acquire(v.image, v.numberThreads, v.VirtualPixelMethod())
}

// Destroy releases the nexus arena and the image reference. Destroying a
// view twice returns ErrDestroyed.
func (v *CacheView) Destroy() error {
	if err := v.check(); err != nil {
		return err
	}
	if v.debug {
		logging.Logger().Debug("cache view destroyed", "threads", v.numberThreads)
	}
	cache.DestroyNexusArray(v.nexusInfo)
	v.nexusInfo = nil
	v.image.Release()
	v.image = nil
	v.signature = poisoned
	metrics.ViewsActive.Dec()
	return nil
}

func (v *CacheView) check() error {
	if v == nil || v.signature != signature {
		return ErrDestroyed
	}
	return nil
}

func (v *CacheView) mustCheck() {
	if err := v.check(); err != nil {
		panic(err)
	}
}

// nexus returns the worker's nexus. An id outside the arena panics.
func (v *CacheView) nexus(id int) *cache.Nexus {
	if id < 0 || id >= v.numberThreads {
		panic(fmt.Sprintf("cacheview: thread id %d out of range [0, %d)", id, v.numberThreads))
	}
	return v.nexusInfo[id]
}

func (v *CacheView) trace(op string, id int, region pixel.Region) {
	if v.debug {
		logging.Logger().Debug("cache view request", "op", op, "id", id, "region", region.String())
	}
}

// Image returns the image the view is bound to.
func (v *CacheView) Image() *magick.Image {
	v.mustCheck()
	return v.image
}

// Threads returns the size of the nexus arena.
func (v *CacheView) Threads() int {
	v.mustCheck()
	return v.numberThreads
}

// Colorspace returns the image's colorspace.
func (v *CacheView) Colorspace() pixel.Colorspace {
	v.mustCheck()
	return v.image.Colorspace()
}

// StorageClass returns the image's storage class.
func (v *CacheView) StorageClass() pixel.StorageClass {
	v.mustCheck()
	return v.image.StorageClass()
}

// Exception returns the image's exception context.
func (v *CacheView) Exception() *exception.Exception {
	v.mustCheck()
	return v.image.Exception()
}

// Extent returns the number of pixels in the worker's latest request.
func (v *CacheView) Extent(id int) int {
	v.mustCheck()
	return v.nexus(id).Extent()
}

// Region returns the worker's latest requested region.
func (v *CacheView) Region(id int) pixel.Region {
	v.mustCheck()
	return v.nexus(id).Region()
}

// VirtualPixelMethod returns the method the view uses for pixels outside
// the image.
func (v *CacheView) VirtualPixelMethod() pixel.VirtualMethod {
	v.mustCheck()
	return pixel.VirtualMethod(v.method.Load())
}

// SetVirtualPixelMethod changes the view's method and returns the previous
// one. The image's own method is unchanged.
func (v *CacheView) SetVirtualPixelMethod(m pixel.VirtualMethod) pixel.VirtualMethod {
	v.mustCheck()
	return pixel.VirtualMethod(v.method.Swap(int32(m)))
}

// SetStorageClass converts the image's storage class. It must not race
// with pixel calls on any view of the image.
func (v *CacheView) SetStorageClass(class pixel.StorageClass) error {
	if err := v.check(); err != nil {
		return err
	}
	return v.image.SetStorageClass(class)
}
