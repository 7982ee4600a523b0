package pixel

import (
	"math"
	"testing"
)

func TestRegion_Len(t *testing.T) {
	tests := []struct {
		name string
		r    Region
		want int
	}{
		{"single", Region{Columns: 1, Rows: 1}, 1},
		{"row", Region{X: 3, Columns: 10, Rows: 1}, 10},
		{"empty", Region{Columns: 0, Rows: 5}, 0},
		{"negative", Region{Columns: -2, Rows: 5}, 0},
		{"wraps to zero", Region{Columns: 1 << 62, Rows: 4}, math.MaxInt},
		{"huge", Region{Columns: math.MaxInt, Rows: math.MaxInt}, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Len(); got != tt.want {
				t.Errorf("%v.Len() = %d, want %d", tt.r, got, tt.want)
			}
		})
	}
}

func TestRegion_Within(t *testing.T) {
	tests := []struct {
		name string
		r    Region
		want bool
	}{
		{"whole image", Region{Columns: 10, Rows: 8}, true},
		{"bottom right pixel", Region{X: 9, Y: 7, Columns: 1, Rows: 1}, true},
		{"past right edge", Region{X: 9, Columns: 2, Rows: 1}, false},
		{"past bottom edge", Region{Y: 7, Columns: 1, Rows: 2}, false},
		{"negative x", Region{X: -1, Columns: 1, Rows: 1}, false},
		{"empty", Region{X: 1, Y: 1}, false},
		{"huge x", Region{X: math.MaxInt - 1, Columns: 10, Rows: 1}, false},
		{"huge y", Region{Y: math.MaxInt - 1, Columns: 1, Rows: 10}, false},
		{"huge width", Region{Columns: math.MaxInt, Rows: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Within(10, 8); got != tt.want {
				t.Errorf("%v.Within(10, 8) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestRegion_Addressable(t *testing.T) {
	tests := []struct {
		r    Region
		want bool
	}{
		{Region{X: -5, Y: -5, Columns: 10, Rows: 10}, true},
		{Region{X: math.MaxInt - 10, Columns: 10, Rows: 1}, true},
		{Region{X: math.MaxInt - 9, Columns: 10, Rows: 1}, false},
		{Region{Y: math.MaxInt, Columns: 1, Rows: 1}, false},
		{Region{X: math.MaxInt, Columns: -3, Rows: 1}, true},
	}
	for _, tt := range tests {
		if got := tt.r.Addressable(); got != tt.want {
			t.Errorf("%v.Addressable() = %v, want %v", tt.r, got, tt.want)
		}
	}
}
