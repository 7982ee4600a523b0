// Package server implements the MCP (Model Context Protocol) server over the
// pixel cache.
//
// The server exposes images held in pixel caches through a JSON-RPC 2.0
// interface. Every tool reads or writes pixels through a cache view, so
// regions may extend past the image edge and are filled by the image's
// virtual pixel method.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Lifecycle:
//   - image_load: Read an image file; the path is its handle
//   - image_create: Create a solid image under a new handle
//   - image_info: Size, layout, storage class, cache type, references
//   - image_release: Drop a handle
//   - image_save: Write an image to a file
//
// Pixel Access:
//   - pixels_get: Read a region as hex colors under any virtual pixel method
//   - pixels_set: Fill a region with a color
//   - pixel_get: One pixel in hex, RGB, RGBA and HSL
//
// Image Settings:
//   - image_set_storage_class: Convert between direct color and a colormap
//
// Filters:
//   - image_convolve: Identity, box blur, sharpen and Sobel kernels
//   - image_crop: Crop a region or named quadrant, returned as PNG
//   - image_dominant_colors: Extract color palette
//
// Diagnostics:
//   - cache_stats: Held images, cache types and reference counts
//
// # Image Handles
//
// The server holds one reference to every image under its handle. Tools take
// their own reference for the duration of a call, so releasing a handle while
// another call uses the image is safe. Results of image_convolve and
// image_crop are stored under a generated handle unless "output" names one.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
// The server is typically started by an MCP client:
//
//	srv := server.New(magick.WithCacheOptions(opts))
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
