package filter

import (
	"fmt"
	"strings"
)

// Kernel is a convolution matrix in row-major order. Width and Height are
// odd so the kernel has a center pixel.
type Kernel struct {
	Width  int
	Height int
	Values []float64
	Bias   float64
}

func (k Kernel) validate() error {
	if k.Width <= 0 || k.Height <= 0 || k.Width%2 == 0 || k.Height%2 == 0 {
		return fmt.Errorf("kernel size %dx%d must be odd and positive", k.Width, k.Height)
	}
	if len(k.Values) != k.Width*k.Height {
		return fmt.Errorf("kernel has %d values, want %d", len(k.Values), k.Width*k.Height)
	}
	return nil
}

// Identity returns the 1x1 kernel that leaves an image unchanged.
func Identity() Kernel {
	return Kernel{Width: 1, Height: 1, Values: []float64{1}}
}

// BoxBlur returns a (2r+1)x(2r+1) mean filter.
func BoxBlur(radius int) Kernel {
	if radius < 1 {
		radius = 1
	}
	size := 2*radius + 1
	values := make([]float64, size*size)
	for i := range values {
		values[i] = 1 / float64(size*size)
	}
	return Kernel{Width: size, Height: size, Values: values}
}

// Sharpen returns a 3x3 unsharp kernel.
func Sharpen() Kernel {
	return Kernel{Width: 3, Height: 3, Values: []float64{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	}}
}

// SobelX returns the horizontal Sobel gradient kernel. Gradients are offset
// by half the quantum range so negative responses stay visible.
func SobelX() Kernel {
	return Kernel{Width: 3, Height: 3, Bias: 0.5, Values: []float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}}
}

// SobelY returns the vertical Sobel gradient kernel.
func SobelY() Kernel {
	return Kernel{Width: 3, Height: 3, Bias: 0.5, Values: []float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}}
}

// KernelNames lists the names ParseKernel accepts.
var KernelNames = []string{"identity", "box-blur", "sharpen", "sobel-x", "sobel-y"}

// ParseKernel returns the named kernel. radius applies to box-blur only.
func ParseKernel(name string, radius int) (Kernel, error) {
	switch strings.ToLower(name) {
	case "identity":
		return Identity(), nil
	case "box-blur", "blur", "box":
		return BoxBlur(radius), nil
	case "sharpen":
		return Sharpen(), nil
	case "sobel-x":
		return SobelX(), nil
	case "sobel-y":
		return SobelY(), nil
	}
	return Kernel{}, fmt.Errorf("unknown kernel %q (valid: %s)", name, strings.Join(KernelNames, ", "))
}
