package filter

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// Crop copies region of img into a new image. The region may extend past
// the image; uncovered pixels come from img's virtual pixel method.
func Crop(ctx context.Context, img *magick.Image, region pixel.Region) (*magick.Image, error) {
	if region.Empty() || !region.Addressable() {
		return nil, fmt.Errorf("invalid crop region %s", region)
	}
	src, dst, out, err := acquirePair(img, region.Columns, region.Rows)
	if err != nil {
		return nil, err
	}
	defer src.Destroy()
	defer dst.Destroy()

	err = forEachRow(ctx, src, region.Rows, func(id, y int) error {
		p, err := src.GetVirtualPixels(id, region.X, region.Y+y, region.Columns, 1)
		if err != nil {
			return err
		}
		q, err := dst.QueueAuthenticPixels(id, 0, y, region.Columns, 1)
		if err != nil {
			return err
		}
		copy(q, p)
		return dst.SyncAuthenticPixels(id)
	})
	if err != nil {
		out.Release()
		return nil, fmt.Errorf("crop %s: %w", region, err)
	}
	return out, nil
}

// QuadrantRegion returns the region of a columns x rows image named by
// quadrant: top-left, top-right, bottom-left, bottom-right, top-half,
// bottom-half, left-half, right-half or center.
func QuadrantRegion(quadrant string, columns, rows int) (pixel.Region, error) {
	midX, midY := columns/2, rows/2

	var x1, y1, x2, y2 int
	switch quadrant {
	case "top-left":
		x1, y1, x2, y2 = 0, 0, midX, midY
	case "top-right":
		x1, y1, x2, y2 = midX, 0, columns, midY
	case "bottom-left":
		x1, y1, x2, y2 = 0, midY, midX, rows
	case "bottom-right":
		x1, y1, x2, y2 = midX, midY, columns, rows
	case "top-half":
		x1, y1, x2, y2 = 0, 0, columns, midY
	case "bottom-half":
		x1, y1, x2, y2 = 0, midY, columns, rows
	case "left-half":
		x1, y1, x2, y2 = 0, 0, midX, rows
	case "right-half":
		x1, y1, x2, y2 = midX, 0, columns, rows
	case "center":
		// Center 50% of the image
		qW, qH := columns/4, rows/4
		x1, y1, x2, y2 = qW, qH, columns-qW, rows-qH
	default:
		return pixel.Region{}, fmt.Errorf("unknown region: %s", quadrant)
	}
	return pixel.Region{X: x1, Y: y1, Columns: x2 - x1, Rows: y2 - y1}, nil
}

// EncodedImage is an image rendered as a base64 PNG.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Encode renders img as a PNG, resized by scale when scale is positive and
// not 1.
func Encode(img *magick.Image, scale float64) (*EncodedImage, error) {
	nrgba, err := img.ToNRGBA()
	if err != nil {
		return nil, err
	}
	out := nrgba
	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(nrgba.Bounds().Dx())*scale))
		newHeight := max(1, int(float64(nrgba.Bounds().Dy())*scale))
		out = imaging.Resize(nrgba, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &EncodedImage{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
