package filter

import (
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/pixel-cache/internal/cacheview"
	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// RGBColor is an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGBAColor is an RGBA color with 8-bit components. A is opacity.
type RGBAColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// HSLColor is a color in HSL space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent
	L int `json:"l"` // Lightness: 0-100 percent
}

// ColorResult is one pixel in several representations.
type ColorResult struct {
	Hex  string    `json:"hex"`
	RGB  RGBColor  `json:"rgb"`
	RGBA RGBAColor `json:"rgba"`
	HSL  HSLColor  `json:"hsl"`
}

// NewColorResult describes p. Channels are scaled to 8 bits.
func NewColorResult(p pixel.Info) ColorResult {
	r := pixel.ScaleQuantumToChar(p.Red)
	g := pixel.ScaleQuantumToChar(p.Green)
	b := pixel.ScaleQuantumToChar(p.Blue)
	a := pixel.ScaleQuantumToChar(p.Alpha)
	h, s, l := p.Colorful().Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return ColorResult{
		Hex:  p.Hex(),
		RGB:  RGBColor{R: r, G: g, B: b},
		RGBA: RGBAColor{R: r, G: g, B: b, A: a},
		HSL:  HSLColor{H: int(h), S: int(s * 100), L: int(l * 100)},
	}
}

// ColorFrequency is a quantized color and its share of the analyzed pixels.
type ColorFrequency struct {
	Hex        string   `json:"hex"`
	Percentage float64  `json:"percentage"`
	RGB        RGBColor `json:"rgb"`
}

// DominantColorsResult holds colors sorted by frequency, most common first.
type DominantColorsResult struct {
	Colors []ColorFrequency `json:"colors"`
}

// DominantColors returns up to count of the most common colors of img, or
// of region when it is not nil. Each component is quantized down to a
// multiple of 16 so similar colors group together. The region must lie
// inside the image.
func DominantColors(img *magick.Image, count int, region *pixel.Region) (*DominantColorsResult, error) {
	bounds := pixel.Region{Columns: img.Columns(), Rows: img.Rows()}
	if region != nil {
		if !region.Within(img.Columns(), img.Rows()) {
			return nil, fmt.Errorf("region %s outside image bounds %dx%d", region, img.Columns(), img.Rows())
		}
		bounds = *region
	}
	view, err := cacheview.AcquireThreads(img, 1)
	if err != nil {
		return nil, err
	}
	defer view.Destroy()

	layout := img.Layout()
	channels := layout.Len()
	colorCounts := make(map[RGBColor]int)
	totalPixels := 0
	var p pixel.Info
	for y := bounds.Y; y < bounds.Y+bounds.Rows; y++ {
		q, err := view.GetVirtualPixels(0, bounds.X, y, bounds.Columns, 1)
		if err != nil {
			return nil, err
		}
		for x := 0; x < bounds.Columns; x++ {
			p.Decode(layout, q[x*channels:])
			key := RGBColor{
				R: pixel.ScaleQuantumToChar(p.Red) / 16 * 16,
				G: pixel.ScaleQuantumToChar(p.Green) / 16 * 16,
				B: pixel.ScaleQuantumToChar(p.Blue) / 16 * 16,
			}
			colorCounts[key]++
			totalPixels++
		}
	}

	colors := make([]ColorFrequency, 0, len(colorCounts))
	for rgb, cnt := range colorCounts {
		colors = append(colors, ColorFrequency{
			Hex:        fmt.Sprintf("#%02X%02X%02X", rgb.R, rgb.G, rgb.B),
			Percentage: float64(cnt) / float64(totalPixels) * 100,
			RGB:        rgb,
		})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})
	if count >= 0 && len(colors) > count {
		colors = colors[:count]
	}
	return &DominantColorsResult{Colors: colors}, nil
}
