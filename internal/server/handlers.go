package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ironsheep/pixel-cache/internal/cacheview"
	"github.com/ironsheep/pixel-cache/internal/filter"
	"github.com/ironsheep/pixel-cache/internal/logging"
	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/parallel"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// maxPixelsPerRequest bounds the region pixels_get returns in one response.
const maxPixelsPerRequest = 64 * 1024

// ErrUnknownImage is returned for a handle the server does not hold.
var ErrUnknownImage = errors.New("unknown image handle")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "pixels_get").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	metrics.RecordToolCall(params.Name, err)
	if err != nil {
		logging.Logger().Warn("tool failed", "tool", params.Name, "err", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Takes a reference to the image named by its handle
//  4. Works on the pixels through a cache view or a filter
//  5. Releases its reference and returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image Lifecycle
	case "image_load":
		return s.handleImageLoad(args)
	case "image_create":
		return s.handleImageCreate(args)
	case "image_info":
		return s.handleImageInfo(args)
	case "image_release":
		return s.handleImageRelease(args)
	case "image_save":
		return s.handleImageSave(args)

	// Pixel Access
	case "pixels_get":
		return s.handlePixelsGet(args)
	case "pixels_set":
		return s.handlePixelsSet(args)
	case "pixel_get":
		return s.handlePixelGet(args)

	// Image Settings
	case "image_set_storage_class":
		return s.handleSetStorageClass(args)

	// Filters
	case "image_convolve":
		return s.handleConvolve(args)
	case "image_crop":
		return s.handleCrop(args)
	case "image_dominant_colors":
		return s.handleDominantColors(args)

	// Diagnostics
	case "cache_stats":
		return s.handleCacheStats()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// image returns a new reference to the image stored under handle. The
// caller must Release it.
func (s *Server) image(handle string) (*magick.Image, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: image handle is required", ErrUnknownImage)
	}
	img, ok := s.images.Get(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImage, handle)
	}
	return img, nil
}

// store adds img under handle, generating one from prefix when handle is
// empty.
func (s *Server) store(handle, prefix string, img *magick.Image) string {
	if handle == "" {
		handle = fmt.Sprintf("%s-%d", prefix, s.nextID.Add(1))
	}
	s.images.Add(handle, img)
	return handle
}

func parseMethod(name string) (pixel.VirtualMethod, error) {
	m, ok := pixel.ParseVirtualMethod(name)
	if !ok {
		return m, fmt.Errorf("unknown virtual pixel method: %s", name)
	}
	return m, nil
}

// regionArgs is a rectangle in tool arguments.
type regionArgs struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r regionArgs) region() pixel.Region {
	return pixel.Region{X: r.X, Y: r.Y, Columns: r.Width, Rows: r.Height}
}

// imageResult is a handle plus its description.
type imageResult struct {
	Handle string `json:"handle"`
	*magick.Description
}

// describe summarizes img for a handler holding one reference to it. The
// reported count excludes that reference.
func describe(handle string, img *magick.Image) *imageResult {
	d := img.Describe()
	d.References--
	return &imageResult{Handle: handle, Description: d}
}

// === Image Lifecycle Handlers ===

type imageLoadArgs struct {
	Path   string `json:"path"`
	Method string `json:"virtual_pixel_method"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.images.Load(a.Path)
	if err != nil {
		return nil, err
	}
	defer img.Release()
	if a.Method != "" {
		m, err := parseMethod(a.Method)
		if err != nil {
			return nil, err
		}
		img.SetVirtualPixelMethod(m)
	}
	logging.Logger().Info("image loaded", "path", a.Path, "cache", img.Cache().Type().String())
	return describe(a.Path, img), nil
}

type imageCreateArgs struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Layout     string `json:"layout"`
	Color      string `json:"color"`
	Background string `json:"background"`
	Method     string `json:"virtual_pixel_method"`
	Handle     string `json:"handle"`
}

func (s *Server) handleImageCreate(args json.RawMessage) (interface{}, error) {
	a := imageCreateArgs{Layout: "rgb", Color: "#000000"}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	layout, ok := pixel.ParseLayout(a.Layout)
	if !ok {
		return nil, fmt.Errorf("unknown layout: %s", a.Layout)
	}
	fill, err := pixel.ParseColor(a.Color)
	if err != nil {
		return nil, err
	}
	opts := append([]magick.Option(nil), s.opts...)
	if a.Background != "" {
		bg, err := pixel.ParseColor(a.Background)
		if err != nil {
			return nil, err
		}
		opts = append(opts, magick.WithBackground(bg))
	}
	if a.Method != "" {
		m, err := parseMethod(a.Method)
		if err != nil {
			return nil, err
		}
		opts = append(opts, magick.WithVirtualPixelMethod(m))
	}

	img, err := magick.New(a.Width, a.Height, layout, opts...)
	if err != nil {
		return nil, err
	}
	defer img.Release()
	if err := fillRegion(img, pixel.Region{Columns: a.Width, Rows: a.Height}, fill); err != nil {
		return nil, err
	}
	handle := s.store(a.Handle, "image", img)
	return describe(handle, img), nil
}

type imageArgs struct {
	Image string `json:"image"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()
	return describe(a.Image, img), nil
}

func (s *Server) handleImageRelease(args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if !s.images.Evict(a.Image) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImage, a.Image)
	}
	return map[string]interface{}{"handle": a.Image, "released": true}, nil
}

type imageSaveArgs struct {
	Image string `json:"image"`
	Path  string `json:"path"`
}

func (s *Server) handleImageSave(args json.RawMessage) (interface{}, error) {
	var a imageSaveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()
	if err := img.Write(a.Path); err != nil {
		return nil, err
	}
	return map[string]interface{}{"handle": a.Image, "path": a.Path}, nil
}

// === Pixel Access Handlers ===

type pixelsGetArgs struct {
	Image string `json:"image"`
	regionArgs
	Method string `json:"virtual_pixel_method"`
}

// PixelsResult is a block of pixels as hex colors, one slice per row.
type PixelsResult struct {
	Image  string       `json:"image"`
	Region pixel.Region `json:"region"`
	Method string       `json:"virtual_pixel_method"`
	Pixels [][]string   `json:"pixels"`
}

func (s *Server) handlePixelsGet(args json.RawMessage) (interface{}, error) {
	var a pixelsGetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	region := a.region()
	if region.Empty() || !region.Addressable() {
		return nil, fmt.Errorf("invalid region %s", region)
	}
	if region.Len() > maxPixelsPerRequest {
		return nil, fmt.Errorf("region %s has %d pixels, limit is %d", region, region.Len(), maxPixelsPerRequest)
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	view, err := cacheview.AcquireThreads(img, 1)
	if err != nil {
		return nil, err
	}
	defer view.Destroy()
	if a.Method != "" {
		m, err := parseMethod(a.Method)
		if err != nil {
			return nil, err
		}
		view.SetVirtualPixelMethod(m)
	}

	layout := img.Layout()
	channels := layout.Len()
	result := &PixelsResult{
		Image:  a.Image,
		Region: region,
		Method: view.VirtualPixelMethod().String(),
		Pixels: make([][]string, region.Rows),
	}
	var p pixel.Info
	for y := 0; y < region.Rows; y++ {
		q, err := view.GetVirtualPixels(0, region.X, region.Y+y, region.Columns, 1)
		if err != nil {
			return nil, err
		}
		row := make([]string, region.Columns)
		for x := range row {
			p.Decode(layout, q[x*channels:])
			row[x] = p.Hex()
		}
		result.Pixels[y] = row
	}
	return result, nil
}

type pixelsSetArgs struct {
	Image string `json:"image"`
	regionArgs
	Color string `json:"color"`
}

func (s *Server) handlePixelsSet(args json.RawMessage) (interface{}, error) {
	var a pixelsSetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	fill, err := pixel.ParseColor(a.Color)
	if err != nil {
		return nil, err
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	region := a.region()
	if !region.Within(img.Columns(), img.Rows()) {
		return nil, fmt.Errorf("region %s outside image bounds %dx%d", region, img.Columns(), img.Rows())
	}
	// Writes bypass the colormap, so a pseudo class image goes direct first.
	if img.StorageClass() == pixel.PseudoClass {
		if err := img.SetStorageClass(pixel.DirectClass); err != nil {
			return nil, err
		}
	}
	if err := fillRegion(img, region, fill); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"image":  a.Image,
		"region": region,
		"color":  fill.Hex(),
		"pixels": region.Len(),
	}, nil
}

// fillRegion writes fill to every pixel of region, one row per worker.
func fillRegion(img *magick.Image, region pixel.Region, fill pixel.Info) error {
	view, err := cacheview.Acquire(img)
	if err != nil {
		return err
	}
	defer view.Destroy()

	layout := img.Layout()
	channels := layout.Len()
	encoded := make([]pixel.Quantum, channels)
	fill.Encode(layout, encoded)
	return parallel.Rows(context.Background(), view.Threads(), region.Rows, func(id, y int) error {
		q, err := view.QueueAuthenticPixels(id, region.X, region.Y+y, region.Columns, 1)
		if err != nil {
			return err
		}
		for x := 0; x < region.Columns; x++ {
			copy(q[x*channels:], encoded)
		}
		return view.SyncAuthenticPixels(id)
	})
}

type pixelGetArgs struct {
	Image  string `json:"image"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Method string `json:"virtual_pixel_method"`
}

// PixelResult is one pixel and whether it lies inside the image.
type PixelResult struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Inside bool `json:"inside"`
	filter.ColorResult
}

func (s *Server) handlePixelGet(args json.RawMessage) (interface{}, error) {
	var a pixelGetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	view, err := cacheview.AcquireThreads(img, 1)
	if err != nil {
		return nil, err
	}
	defer view.Destroy()

	method := view.VirtualPixelMethod()
	if a.Method != "" {
		if method, err = parseMethod(a.Method); err != nil {
			return nil, err
		}
	}
	p, ok := view.GetOneVirtualMethodPixel(0, method, a.X, a.Y)
	if !ok {
		return nil, fmt.Errorf("failed to read pixel (%d,%d): %w", a.X, a.Y, view.Exception().Err())
	}
	inside := a.X >= 0 && a.Y >= 0 && a.X < img.Columns() && a.Y < img.Rows()
	return &PixelResult{X: a.X, Y: a.Y, Inside: inside, ColorResult: filter.NewColorResult(p)}, nil
}

// === Image Settings Handlers ===

type setStorageClassArgs struct {
	Image string `json:"image"`
	Class string `json:"class"`
}

func (s *Server) handleSetStorageClass(args json.RawMessage) (interface{}, error) {
	var a setStorageClassArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	class, ok := pixel.ParseStorageClass(a.Class)
	if !ok {
		return nil, fmt.Errorf("unknown storage class: %s", a.Class)
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	view, err := cacheview.AcquireThreads(img, 1)
	if err != nil {
		return nil, err
	}
	defer view.Destroy()
	if err := view.SetStorageClass(class); err != nil {
		return nil, err
	}
	return describe(a.Image, img), nil
}

// === Filter Handlers ===

type convolveArgs struct {
	Image  string `json:"image"`
	Kernel string `json:"kernel"`
	Radius int    `json:"radius"`
	Output string `json:"output"`
}

func (s *Server) handleConvolve(args json.RawMessage) (interface{}, error) {
	a := convolveArgs{Radius: 1}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	k, err := filter.ParseKernel(a.Kernel, a.Radius)
	if err != nil {
		return nil, err
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	out, err := filter.Convolve(context.Background(), img, k)
	if err != nil {
		return nil, err
	}
	defer out.Release()
	handle := s.store(a.Output, "convolve", out)
	return describe(handle, out), nil
}

type cropArgs struct {
	Image string `json:"image"`
	regionArgs
	Quadrant string  `json:"quadrant"`
	Scale    float64 `json:"scale"`
	Output   string  `json:"output"`
}

// CropResult is a cropped image as PNG plus the handle it is stored under.
type CropResult struct {
	Handle string       `json:"handle"`
	Region pixel.Region `json:"region"`
	*filter.EncodedImage
}

func (s *Server) handleCrop(args json.RawMessage) (interface{}, error) {
	a := cropArgs{Scale: 1.0}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	region := a.region()
	if a.Quadrant != "" {
		if region, err = filter.QuadrantRegion(a.Quadrant, img.Columns(), img.Rows()); err != nil {
			return nil, err
		}
	}
	out, err := filter.Crop(context.Background(), img, region)
	if err != nil {
		return nil, err
	}
	defer out.Release()
	encoded, err := filter.Encode(out, a.Scale)
	if err != nil {
		return nil, err
	}
	handle := s.store(a.Output, "crop", out)
	return &CropResult{Handle: handle, Region: region, EncodedImage: encoded}, nil
}

type dominantColorsArgs struct {
	Image  string      `json:"image"`
	Count  int         `json:"count"`
	Region *regionArgs `json:"region"`
}

func (s *Server) handleDominantColors(args json.RawMessage) (interface{}, error) {
	a := dominantColorsArgs{Count: 5}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.image(a.Image)
	if err != nil {
		return nil, err
	}
	defer img.Release()

	var region *pixel.Region
	if a.Region != nil {
		r := a.Region.region()
		region = &r
	}
	return filter.DominantColors(img, a.Count, region)
}

// === Diagnostics ===

// CacheStats lists the images the server holds.
type CacheStats struct {
	Images      int            `json:"images"`
	Concurrency int            `json:"concurrency"`
	Handles     []*imageResult `json:"handles"`
}

func (s *Server) handleCacheStats() (interface{}, error) {
	keys := s.images.Keys()
	sort.Strings(keys)
	stats := &CacheStats{
		Concurrency: parallel.MaxConcurrency(),
		Handles:     make([]*imageResult, 0, len(keys)),
	}
	for _, key := range keys {
		img, ok := s.images.Get(key)
		if !ok {
			continue
		}
		stats.Handles = append(stats.Handles, describe(key, img))
		img.Release()
	}
	stats.Images = len(stats.Handles)
	return stats, nil
}
