package pixel

import "strings"

// Quantum is a single channel value.
type Quantum = float32

// QuantumRange is the value of a fully saturated channel.
const QuantumRange = 65535.0

// ScaleQuantumToChar converts a quantum to an 8-bit value, clamping to [0,255].
func ScaleQuantumToChar(q float64) uint8 {
	if q <= 0 {
		return 0
	}
	if q >= QuantumRange {
		return 255
	}
	return uint8(q/257.0 + 0.5)
}

// ScaleCharToQuantum converts an 8-bit value to the quantum scale.
func ScaleCharToQuantum(c uint8) Quantum {
	return Quantum(257 * uint32(c))
}

// Channel identifies the meaning of one interleaved channel value.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
	Black
	Alpha
	Gray
)

var channelNames = [...]string{"red", "green", "blue", "black", "alpha", "gray"}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return "undefined"
	}
	return channelNames[c]
}

// Layout is the ordered list of channels stored for every pixel.
type Layout []Channel

// Predefined layouts. CMYK images store cyan, magenta and yellow in the
// Red, Green and Blue channels.
var (
	LayoutGray      = Layout{Gray}
	LayoutGrayAlpha = Layout{Gray, Alpha}
	LayoutRGB       = Layout{Red, Green, Blue}
	LayoutRGBA      = Layout{Red, Green, Blue, Alpha}
	LayoutCMYK      = Layout{Red, Green, Blue, Black}
	LayoutCMYKA     = Layout{Red, Green, Blue, Black, Alpha}
)

// Len returns the number of channels per pixel.
func (l Layout) Len() int { return len(l) }

// Offset returns the position of ch within a pixel.
func (l Layout) Offset(ch Channel) (int, bool) {
	for i, c := range l {
		if c == ch {
			return i, true
		}
	}
	return 0, false
}

// Has reports whether the layout stores ch.
func (l Layout) Has(ch Channel) bool {
	_, ok := l.Offset(ch)
	return ok
}

// HasAlpha reports whether the layout stores an alpha channel.
func (l Layout) HasAlpha() bool { return l.Has(Alpha) }

// IsGray reports whether the layout stores a single intensity channel.
func (l Layout) IsGray() bool { return l.Has(Gray) }

// IsCMYK reports whether the layout stores a black channel.
func (l Layout) IsCMYK() bool { return l.Has(Black) }

func (l Layout) String() string {
	names := make([]string, len(l))
	for i, c := range l {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

// ParseLayout returns the predefined layout named s
// (gray, graya, rgb, rgba, cmyk, cmyka).
func ParseLayout(s string) (Layout, bool) {
	switch strings.ToLower(s) {
	case "gray", "grey":
		return LayoutGray, true
	case "graya", "greya", "gray-alpha":
		return LayoutGrayAlpha, true
	case "rgb":
		return LayoutRGB, true
	case "rgba":
		return LayoutRGBA, true
	case "cmyk":
		return LayoutCMYK, true
	case "cmyka":
		return LayoutCMYKA, true
	}
	return nil, false
}
