package magick

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/pixel-cache/internal/cache"
	"github.com/ironsheep/pixel-cache/internal/exception"
	"github.com/ironsheep/pixel-cache/internal/logging"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// MaxColormapSize is the largest colormap a PseudoClass image may carry.
const MaxColormapSize = 256

// indexExtent is the metacontent bytes holding a colormap index.
const indexExtent = 2

var (
	// ErrColormapTooLarge is returned when an image has more unique colors
	// than fit in a colormap.
	ErrColormapTooLarge = errors.New("too many colors for a colormap")

	// ErrStorageClass is returned for an undefined storage class.
	ErrStorageClass = errors.New("invalid storage class")
)

// Image is a reference-counted raster backed by a pixel cache.
type Image struct {
	refs   atomic.Int32
	closed atomic.Bool

	mu         sync.RWMutex
	cache      *cache.Cache
	background pixel.Info
	method     pixel.VirtualMethod
	colormap   []pixel.Info
	format     string
	filename   string
	exception  *exception.Exception
}

type options struct {
	background pixel.Info
	method     pixel.VirtualMethod
	cacheOpts  cache.Options
	extent     int
	colorspace pixel.Colorspace
}

// Option configures a new Image.
type Option func(*options)

// WithBackground sets the background color.
func WithBackground(bg pixel.Info) Option {
	return func(o *options) { o.background = bg }
}

// WithVirtualPixelMethod sets the policy for pixels outside the image.
func WithVirtualPixelMethod(m pixel.VirtualMethod) Option {
	return func(o *options) { o.method = m }
}

// WithCacheOptions sets the pixel cache resource limits.
func WithCacheOptions(opts cache.Options) Option {
	return func(o *options) { o.cacheOpts = opts }
}

// WithMetacontentExtent reserves n metacontent bytes per pixel.
func WithMetacontentExtent(n int) Option {
	return func(o *options) { o.extent = n }
}

// WithColorspace overrides the colorspace derived from the layout.
func WithColorspace(cs pixel.Colorspace) Option {
	return func(o *options) { o.colorspace = cs }
}

func defaultColorspace(layout pixel.Layout) pixel.Colorspace {
	switch {
	case layout.IsGray():
		return pixel.GrayColorspace
	case layout.IsCMYK():
		return pixel.CMYKColorspace
	}
	return pixel.SRGBColorspace
}

// New creates a blank image with one reference. Pixels start at zero.
func New(columns, rows int, layout pixel.Layout, opts ...Option) (*Image, error) {
	o := options{
		background: pixel.WhiteColor,
		method:     pixel.EdgeVirtualPixelMethod,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.colorspace == pixel.UndefinedColorspace {
		o.colorspace = defaultColorspace(layout)
	}
	c, err := cache.New(cache.Info{
		Columns:           columns,
		Rows:              rows,
		Layout:            layout,
		MetacontentExtent: o.extent,
		Colorspace:        o.colorspace,
		StorageClass:      pixel.DirectClass,
	}, o.cacheOpts)
	if err != nil {
		return nil, fmt.Errorf("unable to create %dx%d image: %w", columns, rows, err)
	}
	img := &Image{
		cache:      c,
		background: o.background,
		method:     o.method,
		exception:  exception.New(),
	}
	img.refs.Store(1)
	metrics.ImagesActive.Inc()
	return img, nil
}

// Reference adds a reference and returns the image.
func (img *Image) Reference() *Image {
	img.refs.Add(1)
	return img
}

// Release drops a reference. The first release to zero closes the pixel
// cache; an image referenced again after that stays closed.
func (img *Image) Release() {
	switch n := img.refs.Add(-1); {
	case n > 0:
		return
	case n < 0:
		logging.Logger().Warn("image released more times than referenced", "refs", n)
		return
	}
	if !img.closed.CompareAndSwap(false, true) {
		return
	}
	if err := img.cache.Close(); err != nil {
		logging.Logger().Warn("failed to close pixel cache", "err", err)
	}
	metrics.ImagesActive.Dec()
}

// ReferenceCount returns the current number of references.
func (img *Image) ReferenceCount() int {
	return int(img.refs.Load())
}

// Columns returns the image width in pixels.
func (img *Image) Columns() int { return img.cache.Info().Columns }

// Rows returns the image height in pixels.
func (img *Image) Rows() int { return img.cache.Info().Rows }

// Layout returns the channel layout of each pixel.
func (img *Image) Layout() pixel.Layout { return img.cache.Info().Layout }

// Cache returns the pixel cache backing the image.
func (img *Image) Cache() *cache.Cache { return img.cache }

// Exception returns the image's exception context.
func (img *Image) Exception() *exception.Exception { return img.exception }

// BackgroundColor returns the color used by the background virtual pixel
// method.
func (img *Image) BackgroundColor() pixel.Info {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.background
}

// SetBackgroundColor sets the background color.
func (img *Image) SetBackgroundColor(bg pixel.Info) {
	img.mu.Lock()
	img.background = bg
	img.mu.Unlock()
}

// VirtualPixelMethod returns the default method for pixels outside the image.
func (img *Image) VirtualPixelMethod() pixel.VirtualMethod {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.method
}

// SetVirtualPixelMethod sets the method and returns the previous one.
func (img *Image) SetVirtualPixelMethod(m pixel.VirtualMethod) pixel.VirtualMethod {
	img.mu.Lock()
	defer img.mu.Unlock()
	prev := img.method
	img.method = m
	return prev
}

// Colorspace returns the colorspace recorded in the pixel cache.
func (img *Image) Colorspace() pixel.Colorspace { return img.cache.Colorspace() }

// SetColorspace records cs in the pixel cache without converting pixels.
func (img *Image) SetColorspace(cs pixel.Colorspace) { img.cache.SetColorspace(cs) }

// StorageClass returns DirectClass or PseudoClass.
func (img *Image) StorageClass() pixel.StorageClass { return img.cache.StorageClass() }

// Colormap returns a copy of the colormap, or nil for DirectClass images.
func (img *Image) Colormap() []pixel.Info {
	img.mu.RLock()
	defer img.mu.RUnlock()
	if img.colormap == nil {
		return nil
	}
	return append([]pixel.Info(nil), img.colormap...)
}

// Format returns the encoded format the image was read from, if any.
func (img *Image) Format() string { return img.format }

// Filename returns the path the image was read from, if any.
func (img *Image) Filename() string { return img.filename }

// SetStorageClass converts the image between DirectClass and PseudoClass.
// Converting to PseudoClass builds a colormap of the unique colors and
// stores each pixel's index in metacontent. Converting back re-syncs the
// color channels from the colormap and drops it.
func (img *Image) SetStorageClass(class pixel.StorageClass) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	current := img.cache.StorageClass()
	if class == current {
		return nil
	}
	var err error
	switch class {
	case pixel.PseudoClass:
		err = img.toPseudoClass()
	case pixel.DirectClass:
		err = img.toDirectClass()
	default:
		err = fmt.Errorf("%w: %v", ErrStorageClass, class)
		img.exception.Throw(exception.OptionError, "UnrecognizedStorageClass", class.String())
		return err
	}
	if err != nil {
		return err
	}
	img.cache.SetStorageClass(class)
	logging.Logger().Debug("storage class changed", "from", current.String(), "to", class.String(),
		"colors", len(img.colormap))
	return nil
}

// toPseudoClass builds the colormap in one pass and writes indexes in a
// second, so a failure leaves the image untouched. Callers hold img.mu.
func (img *Image) toPseudoClass() error {
	info := img.cache.Info()
	channels := info.Channels()
	nexus, err := img.cache.AcquireNexusArray(1)
	if err != nil {
		return err
	}
	defer cache.DestroyNexusArray(nexus)

	type key [5]pixel.Quantum
	index := make(map[key]uint16)
	var colormap []pixel.Info
	for y := 0; y < info.Rows; y++ {
		q, err := img.cache.GetAuthenticPixels(pixel.Region{Y: y, Columns: info.Columns, Rows: 1}, nexus[0], img.exception)
		if err != nil {
			return err
		}
		for x := 0; x < info.Columns; x++ {
			var k key
			copy(k[:], q[x*channels:(x+1)*channels])
			if _, ok := index[k]; ok {
				continue
			}
			if len(colormap) == MaxColormapSize {
				img.exception.Throwf(exception.ImageError, "TooManyColors", "more than %d colors", MaxColormapSize)
				return fmt.Errorf("%w: more than %d", ErrColormapTooLarge, MaxColormapSize)
			}
			var p pixel.Info
			p.Decode(info.Layout, k[:channels])
			index[k] = uint16(len(colormap))
			colormap = append(colormap, p)
		}
	}

	if info.MetacontentExtent < indexExtent {
		if err := img.cache.SetMetacontentExtent(indexExtent); err != nil {
			img.exception.Throw(exception.CacheError, "UnableToExtendMetacontent", err.Error())
			return err
		}
	}
	extent := img.cache.Info().MetacontentExtent
	for y := 0; y < info.Rows; y++ {
		q, err := img.cache.GetAuthenticPixels(pixel.Region{Y: y, Columns: info.Columns, Rows: 1}, nexus[0], img.exception)
		if err != nil {
			return err
		}
		meta := nexus[0].Metacontent()
		for x := 0; x < info.Columns; x++ {
			var k key
			copy(k[:], q[x*channels:(x+1)*channels])
			binary.LittleEndian.PutUint16(meta[x*extent:], index[k])
		}
		if err := img.cache.SyncAuthenticPixels(nexus[0], img.exception); err != nil {
			return err
		}
	}
	img.colormap = colormap
	return nil
}

// toDirectClass rewrites every pixel from its colormap entry. Callers hold
// img.mu.
func (img *Image) toDirectClass() error {
	if img.colormap == nil {
		return nil
	}
	info := img.cache.Info()
	channels := info.Channels()
	extent := info.MetacontentExtent
	nexus, err := img.cache.AcquireNexusArray(1)
	if err != nil {
		return err
	}
	defer cache.DestroyNexusArray(nexus)

	for y := 0; y < info.Rows; y++ {
		q, err := img.cache.GetAuthenticPixels(pixel.Region{Y: y, Columns: info.Columns, Rows: 1}, nexus[0], img.exception)
		if err != nil {
			return err
		}
		meta := nexus[0].Metacontent()
		for x := 0; x < info.Columns; x++ {
			i := int(binary.LittleEndian.Uint16(meta[x*extent:]))
			if i >= len(img.colormap) {
				img.exception.Throwf(exception.ImageError, "InvalidColormapIndex", "index %d at %d,%d", i, x, y)
				i = 0
			}
			img.colormap[i].Encode(info.Layout, q[x*channels:(x+1)*channels])
		}
		if err := img.cache.SyncAuthenticPixels(nexus[0], img.exception); err != nil {
			return err
		}
	}
	img.colormap = nil
	return nil
}

// Clone returns an independent copy of the image with one reference.
func (img *Image) Clone() (*Image, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	c, err := img.cache.Clone()
	if err != nil {
		img.exception.Throw(exception.CacheError, "UnableToCloneImage", err.Error())
		return nil, err
	}
	dup := &Image{
		cache:      c,
		background: img.background,
		method:     img.method,
		format:     img.format,
		filename:   img.filename,
		exception:  exception.New(),
	}
	if img.colormap != nil {
		dup.colormap = append([]pixel.Info(nil), img.colormap...)
	}
	dup.refs.Store(1)
	metrics.ImagesActive.Inc()
	return dup, nil
}
