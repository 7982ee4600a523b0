package filter

import (
	"context"
	"fmt"

	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// Convolve applies k to every color channel of img and returns the result
// as a new image. Alpha is copied from the source. Pixels near the edge are
// convolved with virtual pixels from the source's virtual pixel method.
func Convolve(ctx context.Context, img *magick.Image, k Kernel) (*magick.Image, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	src, dst, out, err := acquirePair(img, img.Columns(), img.Rows())
	if err != nil {
		return nil, err
	}
	defer src.Destroy()
	defer dst.Destroy()

	layout := img.Layout()
	channels := layout.Len()
	alpha, hasAlpha := layout.Offset(pixel.Alpha)
	columns := img.Columns()
	windowColumns := columns + k.Width - 1
	bias := k.Bias * pixel.QuantumRange

	err = forEachRow(ctx, src, img.Rows(), func(id, y int) error {
		window, err := src.GetVirtualPixels(id, -k.Width/2, y-k.Height/2, windowColumns, k.Height)
		if err != nil {
			return err
		}
		q, err := dst.QueueAuthenticPixels(id, 0, y, columns, 1)
		if err != nil {
			return err
		}
		for x := 0; x < columns; x++ {
			for c := 0; c < channels; c++ {
				if hasAlpha && c == alpha {
					center := ((k.Height/2)*windowColumns + x + k.Width/2) * channels
					q[x*channels+c] = window[center+c]
					continue
				}
				sum := bias
				for ky := 0; ky < k.Height; ky++ {
					row := (ky*windowColumns + x) * channels
					for kx := 0; kx < k.Width; kx++ {
						sum += k.Values[ky*k.Width+kx] * float64(window[row+kx*channels+c])
					}
				}
				q[x*channels+c] = clampQuantum(sum)
			}
		}
		return dst.SyncAuthenticPixels(id)
	})
	if err != nil {
		out.Release()
		return nil, fmt.Errorf("convolve: %w", err)
	}
	return out, nil
}

func clampQuantum(v float64) pixel.Quantum {
	if v < 0 {
		return 0
	}
	if v > pixel.QuantumRange {
		return pixel.QuantumRange
	}
	return pixel.Quantum(v)
}
