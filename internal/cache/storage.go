package cache

import (
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

const quantumSize = 4

// storage is a backing store for pixels and metacontent. Offsets are in
// pixels; every run lies within one row.
type storage interface {
	kind() Type
	// direct returns slices aliasing n pixels starting at pixel offset off
	// (y*columns + x). ok is false when the storage cannot alias.
	direct(off, n int) (pixels []pixel.Quantum, meta []byte, ok bool)
	readPixels(x, y, n int, dst []pixel.Quantum) error
	writePixels(x, y, n int, src []pixel.Quantum) error
	readMeta(x, y, n int, dst []byte) error
	writeMeta(x, y, n int, src []byte) error
	close() error
}

// memoryStorage keeps pixels in one contiguous slice.
type memoryStorage struct {
	columns  int
	channels int
	extent   int
	pixels   []pixel.Quantum
	meta     []byte
	length   int64
}

func newMemoryStorage(info Info) *memoryStorage {
	n := info.Columns * info.Rows
	m := &memoryStorage{
		columns:  info.Columns,
		channels: info.Channels(),
		extent:   info.MetacontentExtent,
		pixels:   make([]pixel.Quantum, n*info.Channels()),
		length:   info.Length(),
	}
	if info.MetacontentExtent > 0 {
		m.meta = make([]byte, n*info.MetacontentExtent)
	}
	metrics.AddStorage(MemoryCache.String(), m.length)
	return m
}

func (m *memoryStorage) kind() Type { return MemoryCache }

func (m *memoryStorage) direct(off, n int) ([]pixel.Quantum, []byte, bool) {
	p := m.pixels[off*m.channels : (off+n)*m.channels]
	var meta []byte
	if m.extent > 0 {
		meta = m.meta[off*m.extent : (off+n)*m.extent]
	}
	return p, meta, true
}

func (m *memoryStorage) readPixels(x, y, n int, dst []pixel.Quantum) error {
	off := (y*m.columns + x) * m.channels
	copy(dst[:n*m.channels], m.pixels[off:off+n*m.channels])
	return nil
}

func (m *memoryStorage) writePixels(x, y, n int, src []pixel.Quantum) error {
	off := (y*m.columns + x) * m.channels
	copy(m.pixels[off:off+n*m.channels], src[:n*m.channels])
	return nil
}

func (m *memoryStorage) readMeta(x, y, n int, dst []byte) error {
	if m.extent == 0 {
		return nil
	}
	off := (y*m.columns + x) * m.extent
	copy(dst[:n*m.extent], m.meta[off:off+n*m.extent])
	return nil
}

func (m *memoryStorage) writeMeta(x, y, n int, src []byte) error {
	if m.extent == 0 {
		return nil
	}
	off := (y*m.columns + x) * m.extent
	copy(m.meta[off:off+n*m.extent], src[:n*m.extent])
	return nil
}

func (m *memoryStorage) close() error {
	if m.pixels != nil {
		metrics.AddStorage(MemoryCache.String(), -m.length)
	}
	m.pixels = nil
	m.meta = nil
	return nil
}
