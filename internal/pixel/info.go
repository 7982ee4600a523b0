package pixel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Info is a decoded pixel. Channel values are in the quantum scale. For
// CMYK pixels Red, Green and Blue hold cyan, magenta and yellow.
type Info struct {
	Red        float64    `json:"red"`
	Green      float64    `json:"green"`
	Blue       float64    `json:"blue"`
	Black      float64    `json:"black"`
	Alpha      float64    `json:"alpha"`
	Colorspace Colorspace `json:"colorspace"`
}

// Common colors.
var (
	BlackColor       = Info{Alpha: QuantumRange, Colorspace: SRGBColorspace}
	WhiteColor       = Info{Red: QuantumRange, Green: QuantumRange, Blue: QuantumRange, Alpha: QuantumRange, Colorspace: SRGBColorspace}
	GrayColor        = Info{Red: QuantumRange / 2, Green: QuantumRange / 2, Blue: QuantumRange / 2, Alpha: QuantumRange, Colorspace: SRGBColorspace}
	TransparentColor = Info{Colorspace: SRGBColorspace}
)

// RGB8 builds an opaque sRGB pixel from 8-bit components.
func RGB8(r, g, b uint8) Info {
	return RGBA8(r, g, b, 255)
}

// RGBA8 builds an sRGB pixel from 8-bit components.
func RGBA8(r, g, b, a uint8) Info {
	return Info{
		Red:        float64(ScaleCharToQuantum(r)),
		Green:      float64(ScaleCharToQuantum(g)),
		Blue:       float64(ScaleCharToQuantum(b)),
		Alpha:      float64(ScaleCharToQuantum(a)),
		Colorspace: SRGBColorspace,
	}
}

// Intensity returns the Rec. 709 luma of the pixel.
func (p Info) Intensity() float64 {
	return 0.212656*p.Red + 0.715158*p.Green + 0.072186*p.Blue
}

// Decode fills p from one pixel of interleaved channel data. Channels the
// layout lacks keep their defaults: opaque alpha, zero black.
func (p *Info) Decode(layout Layout, q []Quantum) {
	*p = Info{Alpha: QuantumRange, Colorspace: SRGBColorspace}
	for i, ch := range layout {
		v := float64(q[i])
		switch ch {
		case Red:
			p.Red = v
		case Green:
			p.Green = v
		case Blue:
			p.Blue = v
		case Black:
			p.Black = v
			p.Colorspace = CMYKColorspace
		case Alpha:
			p.Alpha = v
		case Gray:
			p.Red, p.Green, p.Blue = v, v, v
			p.Colorspace = GrayColorspace
		}
	}
}

// Encode writes p as one pixel of interleaved channel data into dst.
func (p Info) Encode(layout Layout, dst []Quantum) {
	for i, ch := range layout {
		switch ch {
		case Red:
			dst[i] = Quantum(p.Red)
		case Green:
			dst[i] = Quantum(p.Green)
		case Blue:
			dst[i] = Quantum(p.Blue)
		case Black:
			dst[i] = Quantum(p.Black)
		case Alpha:
			dst[i] = Quantum(p.Alpha)
		case Gray:
			if p.Colorspace == GrayColorspace {
				dst[i] = Quantum(p.Red)
			} else {
				dst[i] = Quantum(p.Intensity())
			}
		}
	}
}

// Equal reports whether two pixels have identical channel values.
func (p Info) Equal(o Info) bool {
	return p.Red == o.Red && p.Green == o.Green && p.Blue == o.Blue &&
		p.Black == o.Black && p.Alpha == o.Alpha
}

// Colorful converts the color channels to a go-colorful sRGB color.
func (p Info) Colorful() colorful.Color {
	return colorful.Color{
		R: clamp01(p.Red / QuantumRange),
		G: clamp01(p.Green / QuantumRange),
		B: clamp01(p.Blue / QuantumRange),
	}
}

// Hex returns the color as "#RRGGBB", or "#RRGGBBAA" when not fully opaque.
func (p Info) Hex() string {
	hex := strings.ToUpper(p.Colorful().Clamped().Hex())
	if a := ScaleQuantumToChar(p.Alpha); a != 255 {
		hex += fmt.Sprintf("%02X", a)
	}
	return hex
}

// Distance returns the CIE76 distance between two colors in Lab space.
func (p Info) Distance(o Info) float64 {
	return p.Colorful().DistanceLab(o.Colorful())
}

// ParseColor parses "#RGB", "#RRGGBB" or "#RRGGBBAA" into an sRGB pixel.
func ParseColor(s string) (Info, error) {
	s = strings.TrimSpace(s)
	alpha := uint8(255)
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Info{}, fmt.Errorf("invalid alpha in color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Info{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGBA8(r, g, b, alpha), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
