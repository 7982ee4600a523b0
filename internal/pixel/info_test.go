package pixel

import (
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Info
	}{
		{"red", "#FF0000", RGB8(255, 0, 0)},
		{"short form", "#0f0", RGB8(0, 255, 0)},
		{"with alpha", "#0000FF80", RGBA8(0, 0, 255, 0x80)},
		{"padded", "  #ffffff ", RGB8(255, 255, 255)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if err != nil {
				t.Fatalf("ParseColor(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseColor(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, s := range []string{"", "red", "#12", "#GGGGGG", "#000000ZZ"} {
		if _, err := ParseColor(s); err == nil {
			t.Errorf("ParseColor(%q) should fail", s)
		}
	}
}

func TestInfo_Hex(t *testing.T) {
	if got := RGB8(255, 128, 0).Hex(); got != "#FF8000" {
		t.Errorf("Hex: got %s, want #FF8000", got)
	}
	if got := RGBA8(0, 0, 0, 0).Hex(); got != "#00000000" {
		t.Errorf("Hex with alpha: got %s, want #00000000", got)
	}
}

func TestInfo_DecodeEncode(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		data   []Quantum
	}{
		{"gray", LayoutGray, []Quantum{1234}},
		{"gray alpha", LayoutGrayAlpha, []Quantum{1000, 2000}},
		{"rgb", LayoutRGB, []Quantum{1, 2, 3}},
		{"rgba", LayoutRGBA, []Quantum{10, 20, 30, 40}},
		{"cmyk", LayoutCMYK, []Quantum{5, 6, 7, 8}},
		{"cmyka", LayoutCMYKA, []Quantum{5, 6, 7, 8, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Info
			p.Decode(tt.layout, tt.data)
			out := make([]Quantum, tt.layout.Len())
			p.Encode(tt.layout, out)
			for i := range out {
				if out[i] != tt.data[i] {
					t.Errorf("channel %d: got %v, want %v", i, out[i], tt.data[i])
				}
			}
		})
	}
}

func TestInfo_DecodeDefaults(t *testing.T) {
	var p Info
	p.Decode(LayoutRGB, []Quantum{1, 2, 3})
	if p.Alpha != QuantumRange {
		t.Errorf("alpha: got %v, want opaque", p.Alpha)
	}

	p.Decode(LayoutGray, []Quantum{500})
	if p.Red != 500 || p.Green != 500 || p.Blue != 500 {
		t.Errorf("gray decode: got %+v", p)
	}
	if p.Colorspace != GrayColorspace {
		t.Errorf("gray colorspace: got %v", p.Colorspace)
	}
}

func TestInfo_EncodeGrayFromRGB(t *testing.T) {
	out := make([]Quantum, 1)
	WhiteColor.Encode(LayoutGray, out)
	if out[0] < QuantumRange-1 || out[0] > QuantumRange+1 {
		t.Errorf("white intensity: got %v, want %v", out[0], QuantumRange)
	}
}

func TestInfo_Distance(t *testing.T) {
	red := RGB8(255, 0, 0)
	if d := red.Distance(red); d != 0 {
		t.Errorf("distance to self: got %v, want 0", d)
	}
	if red.Distance(RGB8(250, 0, 0)) >= red.Distance(RGB8(0, 0, 255)) {
		t.Error("near red should be closer than blue")
	}
}

func TestScaleQuantumToChar(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-5, 0},
		{0, 0},
		{257, 1},
		{QuantumRange, 255},
		{QuantumRange * 2, 255},
	}
	for _, tt := range tests {
		if got := ScaleQuantumToChar(tt.in); got != tt.want {
			t.Errorf("ScaleQuantumToChar(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
