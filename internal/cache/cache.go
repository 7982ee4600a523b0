package cache

import (
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ironsheep/pixel-cache/internal/logging"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// Type identifies the storage backing a cache.
type Type int

const (
	UndefinedCache Type = iota
	MemoryCache
	DiskCache
)

func (t Type) String() string {
	switch t {
	case MemoryCache:
		return "memory"
	case DiskCache:
		return "disk"
	}
	return "undefined"
}

// Info describes the geometry and tags of a cache.
type Info struct {
	Columns           int
	Rows              int
	Layout            pixel.Layout
	MetacontentExtent int
	Colorspace        pixel.Colorspace
	StorageClass      pixel.StorageClass
}

// Channels returns the number of channels per pixel.
func (i Info) Channels() int { return i.Layout.Len() }

func (i Info) pixelBytes() int64 {
	return int64(i.Columns) * int64(i.Rows) * int64(i.Channels()) * quantumSize
}

func (i Info) metaBytes() int64 {
	return int64(i.Columns) * int64(i.Rows) * int64(i.MetacontentExtent)
}

// Length returns the total storage size in bytes.
func (i Info) Length() int64 { return i.pixelBytes() + i.metaBytes() }

func (i Info) validate() error {
	if i.Columns <= 0 || i.Rows <= 0 {
		return errors.Wrapf(ErrInvalidInfo, "size %dx%d", i.Columns, i.Rows)
	}
	if i.Channels() == 0 {
		return errors.Wrap(ErrInvalidInfo, "no channels")
	}
	if i.MetacontentExtent < 0 {
		return errors.Wrapf(ErrInvalidInfo, "metacontent extent %d", i.MetacontentExtent)
	}
	per := i.Channels()*quantumSize + i.MetacontentExtent
	if n := (pixel.Region{Columns: i.Columns, Rows: i.Rows}).Len(); n > math.MaxInt/per {
		return errors.Wrapf(ErrInvalidInfo, "size %dx%d is not addressable", i.Columns, i.Rows)
	}
	return nil
}

// Options are the resource limits for a cache.
type Options struct {
	// MemoryLimit is the largest cache kept in memory, in bytes. Zero means
	// no limit.
	MemoryLimit int64

	// DiskLimit is the largest cache spilled to disk, in bytes. Zero means
	// no limit.
	DiskLimit int64

	// ThreadLimit caps the size of a nexus array. Zero means no limit.
	ThreadLimit int

	// TempDir is where disk caches are created. Empty means os.TempDir.
	TempDir string

	// RowCacheRows is the number of decoded rows a disk cache keeps
	// resident. Zero disables the row cache.
	RowCacheRows int

	// OpenFile creates the backing file of a disk cache. Defaults to
	// os.CreateTemp.
	OpenFile func(dir, pattern string) (File, error)
}

func (o Options) openFile(dir, pattern string) (File, error) {
	if o.OpenFile != nil {
		return o.OpenFile(dir, pattern)
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Cache is the pixel storage of one image.
type Cache struct {
	mu     sync.RWMutex
	info   Info
	opts   Options
	store  storage
	closed bool
}

// New opens a cache for info, choosing memory or disk storage from opts.
func New(info Info, opts Options) (*Cache, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	store, err := openStorage(info, opts)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("pixel cache opened",
		"type", store.kind().String(),
		"columns", info.Columns,
		"rows", info.Rows,
		"channels", info.Channels(),
		"bytes", info.Length())
	return &Cache{info: info, opts: opts, store: store}, nil
}

func openStorage(info Info, opts Options) (storage, error) {
	length := info.Length()
	if opts.MemoryLimit == 0 || length <= opts.MemoryLimit {
		return newMemoryStorage(info), nil
	}
	if opts.DiskLimit != 0 && length > opts.DiskLimit {
		return nil, errors.Wrapf(ErrResourceLimit, "%d bytes exceeds memory limit %d and disk limit %d",
			length, opts.MemoryLimit, opts.DiskLimit)
	}
	return newDiskStorage(info, opts)
}

// Info returns the cache geometry and tags.
func (c *Cache) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Options returns the options the cache was opened with.
func (c *Cache) Options() Options {
	return c.opts
}

// Type returns the storage type.
func (c *Cache) Type() Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return UndefinedCache
	}
	return c.store.kind()
}

// Colorspace returns the colorspace tag.
func (c *Cache) Colorspace() pixel.Colorspace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Colorspace
}

// SetColorspace updates the colorspace tag.
func (c *Cache) SetColorspace(cs pixel.Colorspace) {
	c.mu.Lock()
	c.info.Colorspace = cs
	c.mu.Unlock()
}

// StorageClass returns the storage class tag.
func (c *Cache) StorageClass() pixel.StorageClass {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.StorageClass
}

// SetStorageClass updates the storage class tag.
func (c *Cache) SetStorageClass(class pixel.StorageClass) {
	c.mu.Lock()
	c.info.StorageClass = class
	c.mu.Unlock()
}

// SetMetacontentExtent rebuilds the storage with n metacontent bytes per
// pixel. Pixels are preserved; existing metacontent is truncated or zero
// padded. Slices previously returned through any nexus become stale.
func (c *Cache) SetMetacontentExtent(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidInfo, "metacontent extent %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if n == c.info.MetacontentExtent {
		return nil
	}

	info := c.info
	info.MetacontentExtent = n
	store, err := openStorage(info, c.opts)
	if err != nil {
		return err
	}
	if err := copyStorage(store, c.store, c.info, info); err != nil {
		_ = store.close()
		return err
	}
	if err := c.store.close(); err != nil {
		logging.Logger().Warn("failed to close replaced pixel cache storage", "err", err)
	}
	c.store = store
	c.info = info
	return nil
}

// Clone returns an independent cache with the same geometry, tags and
// pixels.
func (c *Cache) Clone() (*Cache, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	store, err := openStorage(c.info, c.opts)
	if err != nil {
		return nil, err
	}
	if err := copyStorage(store, c.store, c.info, c.info); err != nil {
		_ = store.close()
		return nil, err
	}
	return &Cache{info: c.info, opts: c.opts, store: store}, nil
}

// copyStorage copies every row of src into dst, one row at a time.
func copyStorage(dst, src storage, srcInfo, dstInfo Info) error {
	row := make([]pixel.Quantum, srcInfo.Columns*srcInfo.Channels())
	extent := min(srcInfo.MetacontentExtent, dstInfo.MetacontentExtent)
	var srcMeta, dstMeta []byte
	if extent > 0 {
		srcMeta = make([]byte, srcInfo.Columns*srcInfo.MetacontentExtent)
		dstMeta = make([]byte, dstInfo.Columns*dstInfo.MetacontentExtent)
	}
	for y := 0; y < srcInfo.Rows; y++ {
		if err := src.readPixels(0, y, srcInfo.Columns, row); err != nil {
			return err
		}
		if err := dst.writePixels(0, y, srcInfo.Columns, row); err != nil {
			return err
		}
		if extent == 0 {
			continue
		}
		if err := src.readMeta(0, y, srcInfo.Columns, srcMeta); err != nil {
			return err
		}
		for x := 0; x < srcInfo.Columns; x++ {
			copy(dstMeta[x*dstInfo.MetacontentExtent:x*dstInfo.MetacontentExtent+extent],
				srcMeta[x*srcInfo.MetacontentExtent:x*srcInfo.MetacontentExtent+extent])
		}
		if err := dst.writeMeta(0, y, srcInfo.Columns, dstMeta); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the storage. Further requests fail with ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.store.close()
	logging.Logger().Debug("pixel cache closed", "type", c.store.kind().String())
	return err
}

// Closed reports whether Close has been called.
func (c *Cache) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
