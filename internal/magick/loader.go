package magick

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register GIF format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/pixel-cache/internal/cache"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// ReadImage decodes the image at path into a new Image with one reference.
// EXIF orientation is applied. Supported formats are PNG, JPEG, GIF, BMP,
// TIFF and WebP.
func ReadImage(path string, opts ...Option) (*Image, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := FromImage(src, opts...)
	if err != nil {
		return nil, err
	}
	img.filename = path
	img.format = formatFromPath(path)
	return img, nil
}

func formatFromPath(path string) string {
	if f, err := imaging.FormatFromFilename(path); err == nil {
		return strings.ToLower(f.String())
	}
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return "webp"
	}
	return "unknown"
}

// FromImage copies src into a new Image with one reference. Gray sources
// become single channel images; sources with transparency keep an alpha
// channel.
func FromImage(src image.Image, opts ...Option) (*Image, error) {
	nrgba := imaging.Clone(src)
	bounds := nrgba.Bounds()

	layout := pixel.LayoutRGBA
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		layout = pixel.LayoutGray
	default:
		if nrgba.Opaque() {
			layout = pixel.LayoutRGB
		}
	}

	img, err := New(bounds.Dx(), bounds.Dy(), layout, opts...)
	if err != nil {
		return nil, err
	}
	if err := img.importNRGBA(nrgba); err != nil {
		img.Release()
		return nil, err
	}
	return img, nil
}

func (img *Image) importNRGBA(src *image.NRGBA) error {
	info := img.cache.Info()
	channels := info.Channels()
	nexus, err := img.cache.AcquireNexusArray(1)
	if err != nil {
		return err
	}
	defer cache.DestroyNexusArray(nexus)

	for y := 0; y < info.Rows; y++ {
		q, err := img.cache.QueueAuthenticPixels(pixel.Region{Y: y, Columns: info.Columns, Rows: 1}, nexus[0], img.exception)
		if err != nil {
			return err
		}
		row := src.Pix[y*src.Stride:]
		for x := 0; x < info.Columns; x++ {
			s := row[x*4 : x*4+4]
			pixel.RGBA8(s[0], s[1], s[2], s[3]).Encode(info.Layout, q[x*channels:(x+1)*channels])
		}
		if err := img.cache.SyncAuthenticPixels(nexus[0], img.exception); err != nil {
			return err
		}
	}
	return nil
}

// ToNRGBA renders the image as 8-bit non-premultiplied RGBA. CMYK pixels
// are converted to RGB.
func (img *Image) ToNRGBA() (*image.NRGBA, error) {
	info := img.cache.Info()
	channels := info.Channels()
	dst := image.NewNRGBA(image.Rect(0, 0, info.Columns, info.Rows))
	nexus, err := img.cache.AcquireNexusArray(1)
	if err != nil {
		return nil, err
	}
	defer cache.DestroyNexusArray(nexus)

	var p pixel.Info
	for y := 0; y < info.Rows; y++ {
		q, err := img.cache.GetAuthenticPixels(pixel.Region{Y: y, Columns: info.Columns, Rows: 1}, nexus[0], img.exception)
		if err != nil {
			return nil, err
		}
		for x := 0; x < info.Columns; x++ {
			p.Decode(info.Layout, q[x*channels:(x+1)*channels])
			dst.SetNRGBA(x, y, toNRGBA(p))
		}
	}
	return dst, nil
}

func toNRGBA(p pixel.Info) color.NRGBA {
	r, g, b := p.Red, p.Green, p.Blue
	if p.Colorspace == pixel.CMYKColorspace {
		k := 1 - p.Black/pixel.QuantumRange
		r = (pixel.QuantumRange - r) * k
		g = (pixel.QuantumRange - g) * k
		b = (pixel.QuantumRange - b) * k
	}
	return color.NRGBA{
		R: pixel.ScaleQuantumToChar(r),
		G: pixel.ScaleQuantumToChar(g),
		B: pixel.ScaleQuantumToChar(b),
		A: pixel.ScaleQuantumToChar(p.Alpha),
	}
}

// Write encodes the image to path. The format follows the file extension.
func (img *Image) Write(path string) error {
	nrgba, err := img.ToNRGBA()
	if err != nil {
		return err
	}
	if err := imaging.Save(nrgba, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ImageCache is a thread-safe store of images keyed by path or handle.
// The cache holds one reference to every image it stores.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*Image
	opts   []Option
}

// NewImageCache creates an empty image cache. opts apply to every image the
// cache reads.
func NewImageCache(opts ...Option) *ImageCache {
	return &ImageCache{
		images: make(map[string]*Image),
		opts:   opts,
	}
}

// Load returns the image stored under path, reading it from disk on first
// use. The caller owns the returned reference and must Release it.
func (c *ImageCache) Load(path string) (*Image, error) {
	if img, ok := c.Get(path); ok {
		return img, nil
	}

	img, err := ReadImage(path, c.opts...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.images[path]; ok {
		img.Release()
		return cur.Reference(), nil
	}
	c.images[path] = img
	return img.Reference(), nil
}

// Get returns a new reference to the image stored under key.
func (c *ImageCache) Get(key string) (*Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	if !ok {
		return nil, false
	}
	return img.Reference(), true
}

// Add stores a reference to img under key, replacing any previous image.
func (c *ImageCache) Add(key string, img *Image) {
	img.Reference()
	c.mu.Lock()
	prev := c.images[key]
	c.images[key] = img
	c.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

// Evict removes the image stored under key and releases the cache's
// reference. It reports whether an image was stored.
func (c *ImageCache) Evict(key string) bool {
	c.mu.Lock()
	img, ok := c.images[key]
	delete(c.images, key)
	c.mu.Unlock()
	if ok {
		img.Release()
	}
	return ok
}

// Clear evicts every image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	images := c.images
	c.images = make(map[string]*Image)
	c.mu.Unlock()
	for _, img := range images {
		img.Release()
	}
}

// Len returns the number of stored images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Keys returns the stored keys.
func (c *ImageCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.images))
	for k := range c.images {
		keys = append(keys, k)
	}
	return keys
}

// Description summarizes an image.
type Description struct {
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	Layout             string `json:"layout"`
	HasAlpha           bool   `json:"has_alpha"`
	Colorspace         string `json:"colorspace"`
	StorageClass       string `json:"storage_class"`
	Colors             int    `json:"colormap_colors,omitempty"`
	CacheType          string `json:"cache_type"`
	VirtualPixelMethod string `json:"virtual_pixel_method"`
	Background         string `json:"background"`
	Format             string `json:"format,omitempty"`
	FileSizeBytes      int64  `json:"file_size_bytes,omitempty"`
	References         int    `json:"references"`
}

// Describe returns a summary of the image. The file size is included for
// images read from disk.
func (img *Image) Describe() *Description {
	info := img.cache.Info()
	d := &Description{
		Width:              info.Columns,
		Height:             info.Rows,
		Layout:             info.Layout.String(),
		HasAlpha:           info.Layout.HasAlpha(),
		Colorspace:         info.Colorspace.String(),
		StorageClass:       info.StorageClass.String(),
		Colors:             len(img.Colormap()),
		CacheType:          img.cache.Type().String(),
		VirtualPixelMethod: img.VirtualPixelMethod().String(),
		Background:         img.BackgroundColor().Hex(),
		Format:             img.format,
		References:         img.ReferenceCount(),
	}
	if img.filename != "" {
		if stat, err := os.Stat(img.filename); err == nil {
			d.FileSizeBytes = stat.Size()
		}
	}
	return d
}
