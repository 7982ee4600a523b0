package magick

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ironsheep/pixel-cache/internal/cache"
	"github.com/ironsheep/pixel-cache/internal/exception"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// createTestImage writes a PNG whose quadrants are red, green, blue and
// white, and returns its path.
func createTestImage(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "pattern.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func pixelAt(t *testing.T, img *Image, x, y int) pixel.Info {
	t.Helper()
	c := img.Cache()
	nexus, err := c.AcquireNexusArray(1)
	if err != nil {
		t.Fatalf("AcquireNexusArray() error = %v", err)
	}
	defer cache.DestroyNexusArray(nexus)
	q, err := c.GetAuthenticPixels(pixel.Region{X: x, Y: y, Columns: 1, Rows: 1}, nexus[0], nil)
	if err != nil {
		t.Fatalf("GetAuthenticPixels() error = %v", err)
	}
	var p pixel.Info
	p.Decode(img.Layout(), q)
	return p
}

func setPixel(t *testing.T, img *Image, x, y int, p pixel.Info) {
	t.Helper()
	c := img.Cache()
	nexus, _ := c.AcquireNexusArray(1)
	defer cache.DestroyNexusArray(nexus)
	q, err := c.QueueAuthenticPixels(pixel.Region{X: x, Y: y, Columns: 1, Rows: 1}, nexus[0], nil)
	if err != nil {
		t.Fatalf("QueueAuthenticPixels() error = %v", err)
	}
	p.Encode(img.Layout(), q)
	if err := c.SyncAuthenticPixels(nexus[0], nil); err != nil {
		t.Fatalf("SyncAuthenticPixels() error = %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	img, err := New(3, 2, pixel.LayoutRGB)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer img.Release()

	if img.Columns() != 3 || img.Rows() != 2 {
		t.Errorf("size = %dx%d, want 3x2", img.Columns(), img.Rows())
	}
	if img.Colorspace() != pixel.SRGBColorspace {
		t.Errorf("Colorspace() = %v", img.Colorspace())
	}
	if img.StorageClass() != pixel.DirectClass {
		t.Errorf("StorageClass() = %v", img.StorageClass())
	}
	if img.VirtualPixelMethod() != pixel.EdgeVirtualPixelMethod {
		t.Errorf("VirtualPixelMethod() = %v", img.VirtualPixelMethod())
	}
	if !img.BackgroundColor().Equal(pixel.WhiteColor) {
		t.Errorf("BackgroundColor() = %+v", img.BackgroundColor())
	}

	gray, err := New(1, 1, pixel.LayoutGray, WithVirtualPixelMethod(pixel.TileVirtualPixelMethod))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gray.Release()
	if gray.Colorspace() != pixel.GrayColorspace || gray.VirtualPixelMethod() != pixel.TileVirtualPixelMethod {
		t.Errorf("gray image colorspace = %v method = %v", gray.Colorspace(), gray.VirtualPixelMethod())
	}
}

func TestNewInvalidSize(t *testing.T) {
	if _, err := New(0, 5, pixel.LayoutRGB); !errors.Is(err, cache.ErrInvalidInfo) {
		t.Errorf("New(0, 5) error = %v, want ErrInvalidInfo", err)
	}
}

func TestReferenceCounting(t *testing.T) {
	img, err := New(2, 2, pixel.LayoutRGB)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if img.ReferenceCount() != 1 {
		t.Fatalf("ReferenceCount() = %d, want 1", img.ReferenceCount())
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img.Reference().Release()
		}()
	}
	wg.Wait()
	if img.ReferenceCount() != 1 {
		t.Fatalf("ReferenceCount() after balanced goroutines = %d, want 1", img.ReferenceCount())
	}

	img.Reference()
	img.Release()
	if img.Cache().Closed() {
		t.Fatal("cache closed while a reference remains")
	}
	img.Release()
	if !img.Cache().Closed() {
		t.Error("cache not closed after last release")
	}
}

func TestReleaseAfterLastReference(t *testing.T) {
	before := testutil.ToFloat64(metrics.ImagesActive)
	img, err := New(2, 2, pixel.LayoutRGB)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.ImagesActive); got != before+1 {
		t.Fatalf("ImagesActive after New = %v, want %v", got, before+1)
	}
	img.Release()
	if got := testutil.ToFloat64(metrics.ImagesActive); got != before {
		t.Fatalf("ImagesActive after release = %v, want %v", got, before)
	}

	// A late reference taken on a closed image must not close it or count
	// it out a second time.
	img.Reference().Release()
	if got := testutil.ToFloat64(metrics.ImagesActive); got != before {
		t.Errorf("ImagesActive after revive = %v, want %v", got, before)
	}
	if !img.Cache().Closed() {
		t.Error("cache reopened by a late reference")
	}
	if img.ReferenceCount() != 0 {
		t.Errorf("ReferenceCount() = %d, want 0", img.ReferenceCount())
	}
}

func TestSetStorageClassRoundTrip(t *testing.T) {
	img, err := New(4, 1, pixel.LayoutRGB)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer img.Release()

	red := pixel.RGB8(255, 0, 0)
	blue := pixel.RGB8(0, 0, 255)
	setPixel(t, img, 0, 0, red)
	setPixel(t, img, 1, 0, blue)
	setPixel(t, img, 2, 0, red)

	if err := img.SetStorageClass(pixel.PseudoClass); err != nil {
		t.Fatalf("SetStorageClass(Pseudo) error = %v", err)
	}
	if img.StorageClass() != pixel.PseudoClass {
		t.Fatalf("StorageClass() = %v", img.StorageClass())
	}
	if got := len(img.Colormap()); got != 3 {
		t.Fatalf("colormap size = %d, want 3", got)
	}
	if got := img.Cache().Info().MetacontentExtent; got != indexExtent {
		t.Fatalf("metacontent extent = %d, want %d", got, indexExtent)
	}

	// Overwrite the color channels; converting back restores them from
	// the colormap.
	setPixel(t, img, 2, 0, pixel.RGB8(1, 2, 3))
	if err := img.SetStorageClass(pixel.DirectClass); err != nil {
		t.Fatalf("SetStorageClass(Direct) error = %v", err)
	}
	if img.Colormap() != nil {
		t.Error("colormap kept after conversion to DirectClass")
	}
	if got := pixelAt(t, img, 2, 0); !got.Equal(red) {
		t.Errorf("pixel 2 = %+v, want red", got)
	}
	if got := pixelAt(t, img, 1, 0); !got.Equal(blue) {
		t.Errorf("pixel 1 = %+v, want blue", got)
	}
}

func TestSetStorageClassTooManyColors(t *testing.T) {
	img, err := New(MaxColormapSize+1, 1, pixel.LayoutGray)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer img.Release()

	c := img.Cache()
	nexus, _ := c.AcquireNexusArray(1)
	q, _ := c.QueueAuthenticPixels(pixel.Region{Columns: MaxColormapSize + 1, Rows: 1}, nexus[0], nil)
	for i := range q {
		q[i] = pixel.Quantum(i)
	}
	_ = c.SyncAuthenticPixels(nexus[0], nil)
	cache.DestroyNexusArray(nexus)

	if err := img.SetStorageClass(pixel.PseudoClass); !errors.Is(err, ErrColormapTooLarge) {
		t.Fatalf("SetStorageClass() error = %v, want ErrColormapTooLarge", err)
	}
	if img.StorageClass() != pixel.DirectClass {
		t.Error("storage class changed after failure")
	}
	if img.Exception().Severity() != exception.ImageError {
		t.Errorf("exception severity = %v, want ImageError", img.Exception().Severity())
	}
}

func TestSetStorageClassUndefined(t *testing.T) {
	img, _ := New(1, 1, pixel.LayoutRGB)
	defer img.Release()
	if err := img.SetStorageClass(pixel.UndefinedClass); !errors.Is(err, ErrStorageClass) {
		t.Errorf("SetStorageClass(Undefined) error = %v", err)
	}
}

func TestReadAndWriteImage(t *testing.T) {
	path := createTestImage(t, 8, 6)
	img, err := ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	defer img.Release()

	if img.Columns() != 8 || img.Rows() != 6 {
		t.Fatalf("size = %dx%d, want 8x6", img.Columns(), img.Rows())
	}
	if img.Layout().HasAlpha() {
		t.Error("opaque PNG decoded with alpha channel")
	}
	if img.Format() != "png" {
		t.Errorf("Format() = %q, want png", img.Format())
	}
	if got := pixelAt(t, img, 7, 5).Hex(); got != "#FFFFFF" {
		t.Errorf("bottom-right = %s, want #FFFFFF", got)
	}
	if got := pixelAt(t, img, 0, 5).Hex(); got != "#0000FF" {
		t.Errorf("bottom-left = %s, want #0000FF", got)
	}

	out := filepath.Join(t.TempDir(), "copy.png")
	if err := img.Write(out); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	again, err := ReadImage(out)
	if err != nil {
		t.Fatalf("ReadImage(copy) error = %v", err)
	}
	defer again.Release()
	if got := pixelAt(t, again, 7, 0).Hex(); got != "#00FF00" {
		t.Errorf("top-right after round trip = %s, want #00FF00", got)
	}

	d := again.Describe()
	if d.Width != 8 || d.FileSizeBytes == 0 || d.CacheType != "memory" || d.References != 1 {
		t.Errorf("Describe() = %+v", d)
	}
}

func TestReadImageMissing(t *testing.T) {
	if _, err := ReadImage("/nonexistent/image.png"); err == nil {
		t.Error("ReadImage() of missing file succeeded")
	}
}

func TestFromImageLayouts(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(1, 0, color.Gray{Y: 200})
	img, err := FromImage(gray)
	if err != nil {
		t.Fatalf("FromImage(gray) error = %v", err)
	}
	defer img.Release()
	if img.Layout().Len() != 1 || img.Colorspace() != pixel.GrayColorspace {
		t.Errorf("gray layout = %v colorspace = %v", img.Layout(), img.Colorspace())
	}
	nrgba, err := img.ToNRGBA()
	if err != nil {
		t.Fatalf("ToNRGBA() error = %v", err)
	}
	if got := nrgba.NRGBAAt(1, 0); got.R != 200 || got.G != 200 || got.A != 255 {
		t.Errorf("gray pixel = %v, want 200", got)
	}

	translucent := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	translucent.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	img2, err := FromImage(translucent)
	if err != nil {
		t.Fatalf("FromImage(nrgba) error = %v", err)
	}
	defer img2.Release()
	if !img2.Layout().HasAlpha() {
		t.Fatal("translucent image lost its alpha channel")
	}
	out, _ := img2.ToNRGBA()
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 10, G: 20, B: 30, A: 128}) {
		t.Errorf("translucent pixel = %v", got)
	}
}

func TestToNRGBAFromCMYK(t *testing.T) {
	img, err := New(1, 1, pixel.LayoutCMYK)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer img.Release()
	// Full cyan, no black.
	setPixel(t, img, 0, 0, pixel.Info{Red: pixel.QuantumRange, Alpha: pixel.QuantumRange, Colorspace: pixel.CMYKColorspace})
	out, err := img.ToNRGBA()
	if err != nil {
		t.Fatalf("ToNRGBA() error = %v", err)
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 0, G: 255, B: 255, A: 255}) {
		t.Errorf("cyan = %v", got)
	}
}

func TestClone(t *testing.T) {
	img, _ := New(2, 1, pixel.LayoutRGB, WithBackground(pixel.BlackColor))
	defer img.Release()
	setPixel(t, img, 0, 0, pixel.RGB8(9, 9, 9))

	dup, err := img.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	defer dup.Release()
	setPixel(t, dup, 0, 0, pixel.RGB8(1, 1, 1))

	if got := pixelAt(t, img, 0, 0); !got.Equal(pixel.RGB8(9, 9, 9)) {
		t.Errorf("original changed by clone write: %+v", got)
	}
	if !dup.BackgroundColor().Equal(pixel.BlackColor) || dup.ReferenceCount() != 1 {
		t.Errorf("clone background = %+v refs = %d", dup.BackgroundColor(), dup.ReferenceCount())
	}
}

func TestImageCache(t *testing.T) {
	path := createTestImage(t, 4, 4)
	ic := NewImageCache()

	img, err := ic.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	again, err := ic.Load(path)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if img != again {
		t.Error("second Load() returned a different image")
	}
	// One reference held by the cache plus two by the caller.
	if img.ReferenceCount() != 3 {
		t.Errorf("ReferenceCount() = %d, want 3", img.ReferenceCount())
	}
	again.Release()

	created, _ := New(1, 1, pixel.LayoutRGB)
	ic.Add("img-1", created)
	created.Release()
	if ic.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ic.Len())
	}

	if !ic.Evict(path) {
		t.Error("Evict() of loaded image returned false")
	}
	if ic.Evict(path) {
		t.Error("second Evict() returned true")
	}
	if img.Cache().Closed() {
		t.Error("evicted image closed while caller still holds a reference")
	}
	img.Release()
	if !img.Cache().Closed() {
		t.Error("image not closed after caller released the last reference")
	}

	ic.Clear()
	if ic.Len() != 0 || !created.Cache().Closed() {
		t.Errorf("Clear() left len = %d closed = %v", ic.Len(), created.Cache().Closed())
	}
}

func TestImageCacheLoadMissing(t *testing.T) {
	ic := NewImageCache()
	if _, err := ic.Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
	if ic.Len() != 0 {
		t.Errorf("Len() = %d after failed load", ic.Len())
	}
}
