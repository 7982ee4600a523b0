// Package pixel defines the value types shared by the pixel cache, images and
// cache views.
//
// Pixels are stored as interleaved channel values of type Quantum. The order
// and meaning of the channels of an image is described by a Layout, so a
// row-major run of N pixels of an RGBA image is 4*N Quantum values:
//
//	R G B A R G B A ...
//
// Quantum values are float32 in the range [0, QuantumRange]. Values outside
// that range are legal in intermediate results and are clamped only when a
// pixel is converted to an 8-bit color.
//
// # Coordinate System
//
// Regions use image coordinates with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. A Region may start at
// negative coordinates; whether that is meaningful depends on the access path
// (authentic pixel requests must lie inside the image, virtual pixel requests
// may extend beyond it in any direction).
package pixel
