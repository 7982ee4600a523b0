// Package filter provides image operations built on cache views.
//
// Every operation reads its source through cacheview.CacheView. Convolve
// and Crop fan rows out over parallel.Rows, one nexus per worker.
// Operations that need pixels beyond the image edge (convolution windows,
// crops that overhang the image) read virtual pixels, so the result
// follows the source image's virtual pixel method.
//
// # Operations
//
//   - Convolve: apply a Kernel to every color channel
//   - Crop: extract a region, which may extend past the image
//   - DominantColors: quantized color histogram of the image or a region
//   - Encode: render an image as a base64 PNG, optionally scaled
package filter
