package server

import (
	"github.com/ironsheep/pixel-cache/internal/filter"
	"github.com/ironsheep/pixel-cache/internal/pixel"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var (
	imageProp = map[string]interface{}{
		"type":        "string",
		"description": "Image handle returned by image_load, image_create, image_convolve or image_crop",
	}
	methodProp = map[string]interface{}{
		"type":        "string",
		"enum":        virtualMethodNames(),
		"description": "Virtual pixel method for coordinates outside the image. Defaults to the image's method.",
	}
	outputProp = map[string]interface{}{
		"type":        "string",
		"description": "Optional handle for the result image. Generated when omitted.",
	}
)

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func regionProps(props map[string]interface{}) map[string]interface{} {
	props["x"] = intProp("Left edge X coordinate (0-based, may be negative)")
	props["y"] = intProp("Top edge Y coordinate (0-based, may be negative)")
	props["width"] = intProp("Region width in pixels")
	props["height"] = intProp("Region height in pixels")
	return props
}

func virtualMethodNames() []string {
	names := make([]string, 0, 16)
	for m := pixel.UndefinedVirtualPixelMethod; m <= pixel.CheckerTileVirtualPixelMethod; m++ {
		names = append(names, m.String())
	}
	return names
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Lifecycle
		{
			Name:        "image_load",
			Description: "Load an image file into the pixel cache. The path becomes the image handle.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"virtual_pixel_method": methodProp,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_create",
			Description: "Create a new image filled with a solid color.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width":  intProp("Image width in pixels"),
					"height": intProp("Image height in pixels"),
					"layout": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"gray", "graya", "rgb", "rgba", "cmyk", "cmyka"},
						"description": "Channel layout. Default rgb",
						"default":     "rgb",
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Fill color as #RGB, #RRGGBB or #RRGGBBAA. Default #000000",
					},
					"background": map[string]interface{}{
						"type":        "string",
						"description": "Background color used by the background virtual pixel method. Default #FFFFFF",
					},
					"virtual_pixel_method": methodProp,
					"handle":               outputProp,
				},
				"required": []string{"width", "height"},
			},
		},
		{
			Name:        "image_info",
			Description: "Describe an image: size, layout, storage class, cache type, virtual pixel method and reference count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": imageProp,
				},
				"required": []string{"image"},
			},
		},
		{
			Name:        "image_release",
			Description: "Release an image handle. The pixel cache is freed once nothing else references it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": imageProp,
				},
				"required": []string{"image"},
			},
		},
		{
			Name:        "image_save",
			Description: "Write an image to a file. The format follows the file extension (png, jpg, gif, bmp, tiff).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": imageProp,
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the output file",
					},
				},
				"required": []string{"image", "path"},
			},
		},

		// Pixel Access
		{
			Name:        "pixels_get",
			Description: "Read a region of pixels as hex colors, row by row. The region may extend outside the image; those pixels come from the virtual pixel method.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": regionProps(map[string]interface{}{
					"image":                imageProp,
					"virtual_pixel_method": methodProp,
				}),
				"required": []string{"image", "x", "y", "width", "height"},
			},
		},
		{
			Name:        "pixels_set",
			Description: "Fill a region of the image with a color. The region must lie inside the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": regionProps(map[string]interface{}{
					"image": imageProp,
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Fill color as #RGB, #RRGGBB or #RRGGBBAA",
					},
				}),
				"required": []string{"image", "x", "y", "width", "height", "color"},
			},
		},
		{
			Name:        "pixel_get",
			Description: "Get the color of one pixel in hex, RGB, RGBA and HSL. Coordinates outside the image use the virtual pixel method.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image":                imageProp,
					"x":                    intProp("X coordinate (0-based, from left)"),
					"y":                    intProp("Y coordinate (0-based, from top)"),
					"virtual_pixel_method": methodProp,
				},
				"required": []string{"image", "x", "y"},
			},
		},

		// Image Settings
		{
			Name:        "image_set_storage_class",
			Description: "Convert an image between direct color and a colormap (pseudo class, at most 256 colors).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": imageProp,
					"class": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"direct", "pseudo"},
						"description": "Target storage class",
					},
				},
				"required": []string{"image", "class"},
			},
		},

		// Filters
		{
			Name:        "image_convolve",
			Description: "Convolve an image with a kernel. Edge pixels use the image's virtual pixel method. Returns a handle to the result.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": imageProp,
					"kernel": map[string]interface{}{
						"type":        "string",
						"enum":        filter.KernelNames,
						"description": "Kernel to apply",
					},
					"radius": map[string]interface{}{
						"type":        "integer",
						"description": "Radius for box-blur. Default 1",
						"default":     1,
					},
					"output": outputProp,
				},
				"required": []string{"image", "kernel"},
			},
		},
		{
			Name:        "image_crop",
			Description: "Crop a region (or a named quadrant) and return it as base64-encoded PNG plus a handle to the cropped image. The region may extend past the image edge.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": regionProps(map[string]interface{}{
					"image": imageProp,
					"quadrant": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"},
						"description": "Named region to extract instead of x/y/width/height",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the returned PNG. Default 1.0",
						"default":     1.0,
					},
					"output": outputProp,
				}),
				"required": []string{"image"},
			},
		},
		{
			Name:        "image_dominant_colors",
			Description: "Analyze an image and return the N most dominant colors (color palette extraction).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": imageProp,
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of dominant colors to return (default 5)",
						"default":     5,
					},
					"region": map[string]interface{}{
						"type":        "object",
						"properties":  regionProps(map[string]interface{}{}),
						"description": "Optional region to analyze. If omitted, analyzes entire image.",
					},
				},
				"required": []string{"image"},
			},
		},

		// Diagnostics
		{
			Name:        "cache_stats",
			Description: "List the images held by the server with their cache type and reference counts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
