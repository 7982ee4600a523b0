package cache

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/ironsheep/pixel-cache/internal/logging"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// File is the backing file of a disk cache.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Name() string
	Truncate(size int64) error
}

// diskStorage keeps pixels in a file as little-endian float32 values,
// followed by the metacontent area. A bounded LRU holds decoded rows.
type diskStorage struct {
	mu       sync.Mutex
	file     File
	columns  int
	channels int
	extent   int
	metaBase int64
	length   int64
	rows     *lru.Cache[int, []pixel.Quantum]
	scratch  []byte
}

func newDiskStorage(info Info, opts Options) (*diskStorage, error) {
	dir := opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := opts.openFile(dir, "pixelcache-*.cache")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create disk cache")
	}
	length := info.Length()
	if err := f.Truncate(length); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, errors.Wrapf(err, "unable to extend disk cache %s to %d bytes", f.Name(), length)
	}

	d := &diskStorage{
		file:     f,
		columns:  info.Columns,
		channels: info.Channels(),
		extent:   info.MetacontentExtent,
		metaBase: info.pixelBytes(),
		length:   length,
	}
	if opts.RowCacheRows > 0 {
		d.rows, err = lru.NewWithEvict[int, []pixel.Quantum](opts.RowCacheRows, func(int, []pixel.Quantum) {
			metrics.RowCacheEvictionsTotal.Inc()
		})
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return nil, errors.Wrap(err, "unable to create row cache")
		}
	}
	metrics.AddStorage(DiskCache.String(), length)
	logging.Logger().Info("pixel cache spilled to disk", "file", f.Name(), "bytes", length)
	return d, nil
}

func (d *diskStorage) kind() Type { return DiskCache }

func (d *diskStorage) direct(int, int) ([]pixel.Quantum, []byte, bool) {
	return nil, nil, false
}

func (d *diskStorage) pixelOffset(x, y int) int64 {
	return (int64(y)*int64(d.columns) + int64(x)) * int64(d.channels) * quantumSize
}

func (d *diskStorage) metaOffset(x, y int) int64 {
	return d.metaBase + (int64(y)*int64(d.columns)+int64(x))*int64(d.extent)
}

func (d *diskStorage) buffer(n int) []byte {
	if cap(d.scratch) < n {
		d.scratch = make([]byte, n)
	}
	return d.scratch[:n]
}

// loadRow reads row y from the file. Callers hold d.mu.
func (d *diskStorage) loadRow(y int) ([]pixel.Quantum, error) {
	row := make([]pixel.Quantum, d.columns*d.channels)
	if err := d.readAt(row, d.pixelOffset(0, y)); err != nil {
		return nil, err
	}
	return row, nil
}

func (d *diskStorage) readAt(dst []pixel.Quantum, off int64) error {
	buf := d.buffer(len(dst) * quantumSize)
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return errors.Wrapf(err, "unable to read pixel cache %s at offset %d", d.file.Name(), off)
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*quantumSize:]))
	}
	return nil
}

func (d *diskStorage) readPixels(x, y, n int, dst []pixel.Quantum) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rows == nil {
		return d.readAt(dst[:n*d.channels], d.pixelOffset(x, y))
	}
	row, ok := d.rows.Get(y)
	metrics.RecordRowCache(ok)
	if !ok {
		var err error
		if row, err = d.loadRow(y); err != nil {
			return err
		}
		d.rows.Add(y, row)
	}
	copy(dst[:n*d.channels], row[x*d.channels:(x+n)*d.channels])
	return nil
}

func (d *diskStorage) writePixels(x, y, n int, src []pixel.Quantum) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	src = src[:n*d.channels]
	buf := d.buffer(len(src) * quantumSize)
	for i, v := range src {
		binary.LittleEndian.PutUint32(buf[i*quantumSize:], math.Float32bits(v))
	}
	off := d.pixelOffset(x, y)
	if _, err := d.file.WriteAt(buf, off); err != nil {
		if d.rows != nil {
			d.rows.Remove(y)
		}
		return errors.Wrapf(err, "unable to write pixel cache %s at offset %d", d.file.Name(), off)
	}
	if d.rows != nil {
		if row, ok := d.rows.Peek(y); ok {
			copy(row[x*d.channels:(x+n)*d.channels], src)
		}
	}
	return nil
}

func (d *diskStorage) readMeta(x, y, n int, dst []byte) error {
	if d.extent == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	off := d.metaOffset(x, y)
	if _, err := d.file.ReadAt(dst[:n*d.extent], off); err != nil {
		return errors.Wrapf(err, "unable to read metacontent %s at offset %d", d.file.Name(), off)
	}
	return nil
}

func (d *diskStorage) writeMeta(x, y, n int, src []byte) error {
	if d.extent == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	off := d.metaOffset(x, y)
	if _, err := d.file.WriteAt(src[:n*d.extent], off); err != nil {
		return errors.Wrapf(err, "unable to write metacontent %s at offset %d", d.file.Name(), off)
	}
	return nil
}

func (d *diskStorage) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	d.rows = nil
	name := d.file.Name()
	err := d.file.Close()
	d.file = nil
	if rerr := os.Remove(name); rerr != nil && !os.IsNotExist(rerr) {
		logging.Logger().Warn("unable to remove disk cache", "file", name, "err", rerr)
	}
	metrics.AddStorage(DiskCache.String(), -d.length)
	return errors.Wrap(err, "unable to close disk cache")
}
