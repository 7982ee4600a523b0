package filter

import (
	"context"

	"github.com/ironsheep/pixel-cache/internal/cacheview"
	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/parallel"
)

// acquirePair returns a view over img, a new columns x rows image sharing
// img's layout and settings, and a view over the new image with the same
// number of workers. The caller owns the reference to out.
func acquirePair(img *magick.Image, columns, rows int) (src, dst *cacheview.CacheView, out *magick.Image, err error) {
	src, err = cacheview.Acquire(img)
	if err != nil {
		return nil, nil, nil, err
	}
	out, err = magick.New(columns, rows, img.Layout(),
		magick.WithBackground(img.BackgroundColor()),
		magick.WithVirtualPixelMethod(img.VirtualPixelMethod()),
		magick.WithColorspace(img.Colorspace()),
		magick.WithCacheOptions(img.Cache().Options()))
	if err != nil {
		_ = src.Destroy()
		return nil, nil, nil, err
	}
	dst, err = cacheview.AcquireThreads(out, src.Threads())
	if err != nil {
		out.Release()
		_ = src.Destroy()
		return nil, nil, nil, err
	}
	return src, dst, out, nil
}

// forEachRow calls fn for every row, one worker per nexus of view.
func forEachRow(ctx context.Context, view *cacheview.CacheView, rows int, fn func(id, y int) error) error {
	return parallel.Rows(ctx, view.Threads(), rows, fn)
}
