package server

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/pixel-cache/internal/cache"
	"github.com/ironsheep/pixel-cache/internal/magick"
)

// createTestImageFile writes a PNG with a different color in each quadrant:
// red, green, blue and white.
func createTestImageFile(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.RGBA
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, opts ...magick.Option) *Server {
	t.Helper()
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

// callTool runs a tools/call request and decodes the text content into
// result. It returns the JSON-RPC error, if any.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, result interface{}) *MCPError {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}
	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if result != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), result); err != nil {
			t.Fatalf("decode %s result: %v", name, err)
		}
	}
	return nil
}

func mustCallTool(t *testing.T, s *Server, name string, args map[string]interface{}, result interface{}) {
	t.Helper()
	if mcpErr := callTool(t, s, name, args, result); mcpErr != nil {
		t.Fatalf("%s failed: %s: %v", name, mcpErr.Message, mcpErr.Data)
	}
}

type describeResult struct {
	Handle             string `json:"handle"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	Layout             string `json:"layout"`
	StorageClass       string `json:"storage_class"`
	Colors             int    `json:"colormap_colors"`
	CacheType          string `json:"cache_type"`
	VirtualPixelMethod string `json:"virtual_pixel_method"`
	References         int    `json:"references"`
}

func TestImageLoadAndInfo(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80)

	var loaded describeResult
	mustCallTool(t, s, "image_load", map[string]interface{}{"path": path, "virtual_pixel_method": "tile"}, &loaded)
	if loaded.Handle != path || loaded.Width != 100 || loaded.Height != 80 {
		t.Errorf("image_load = %+v", loaded)
	}
	if loaded.Layout != "red,green,blue" || loaded.CacheType != "memory" {
		t.Errorf("layout %q cache %q", loaded.Layout, loaded.CacheType)
	}
	if loaded.VirtualPixelMethod != "tile" {
		t.Errorf("virtual_pixel_method = %q, want tile", loaded.VirtualPixelMethod)
	}

	var info describeResult
	mustCallTool(t, s, "image_info", map[string]interface{}{"image": path}, &info)
	if info.References != 1 {
		t.Errorf("references = %d, want 1", info.References)
	}
}

func TestImageLoad_Errors(t *testing.T) {
	s := newTestServer(t)
	if callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"}, nil) == nil {
		t.Error("loading a missing file succeeded")
	}
	if callTool(t, s, "image_load", map[string]interface{}{}, nil) == nil {
		t.Error("loading without a path succeeded")
	}
	path := createTestImageFile(t, 4, 4)
	mcpErr := callTool(t, s, "image_load", map[string]interface{}{"path": path, "virtual_pixel_method": "sideways"}, nil)
	if mcpErr == nil || mcpErr.Code != -32000 {
		t.Errorf("bad method error = %+v", mcpErr)
	}
}

func TestImageCreate(t *testing.T) {
	s := newTestServer(t)

	var created describeResult
	mustCallTool(t, s, "image_create", map[string]interface{}{
		"width": 6, "height": 4, "layout": "rgba", "color": "#FF000080",
	}, &created)
	if created.Handle != "image-1" || created.Width != 6 || created.Layout != "red,green,blue,alpha" {
		t.Errorf("image_create = %+v", created)
	}

	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "image-1", "x": 5, "y": 3}, &px)
	if px.Hex != "#FF000080" || !px.Inside {
		t.Errorf("pixel_get = %+v", px)
	}

	for _, args := range []map[string]interface{}{
		{"width": 0, "height": 4},
		{"width": 2, "height": 2, "layout": "hsv"},
		{"width": 2, "height": 2, "color": "red"},
	} {
		if callTool(t, s, "image_create", args, nil) == nil {
			t.Errorf("image_create(%v) succeeded", args)
		}
	}
}

func TestImageRelease(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 2, "height": 2, "handle": "tmp"}, nil)

	img, ok := s.images.Get("tmp")
	if !ok {
		t.Fatal("image not stored")
	}
	defer img.Release()

	mustCallTool(t, s, "image_release", map[string]interface{}{"image": "tmp"}, nil)
	if img.ReferenceCount() != 1 {
		t.Errorf("ReferenceCount() after release = %d, want 1", img.ReferenceCount())
	}
	if img.Cache().Closed() {
		t.Error("cache closed while a reference remains")
	}
	mcpErr := callTool(t, s, "image_release", map[string]interface{}{"image": "tmp"}, nil)
	if mcpErr == nil {
		t.Error("releasing twice succeeded")
	}
	if callTool(t, s, "image_info", map[string]interface{}{"image": "tmp"}, nil) == nil {
		t.Error("image_info after release succeeded")
	}
}

func TestPixelsGet_VirtualMethods(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 4, 4)
	mustCallTool(t, s, "image_load", map[string]interface{}{"path": path}, nil)

	tests := []struct {
		method string
		want   []string
	}{
		// Row y=0 from x=-2 to x=5.
		{"edge", []string{"#FF0000", "#FF0000", "#FF0000", "#FF0000", "#00FF00", "#00FF00", "#00FF00", "#00FF00"}},
		{"tile", []string{"#00FF00", "#00FF00", "#FF0000", "#FF0000", "#00FF00", "#00FF00", "#FF0000", "#FF0000"}},
		{"mirror", []string{"#FF0000", "#FF0000", "#FF0000", "#FF0000", "#00FF00", "#00FF00", "#00FF00", "#00FF00"}},
		{"black", []string{"#000000", "#000000", "#FF0000", "#FF0000", "#00FF00", "#00FF00", "#000000", "#000000"}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var result PixelsResult
			mustCallTool(t, s, "pixels_get", map[string]interface{}{
				"image": path, "x": -2, "y": 0, "width": 8, "height": 1, "virtual_pixel_method": tt.method,
			}, &result)
			if result.Method != tt.method || len(result.Pixels) != 1 {
				t.Fatalf("result = %+v", result)
			}
			for i, want := range tt.want {
				if got := result.Pixels[0][i]; got != want {
					t.Errorf("x=%d: got %s, want %s", i-2, got, want)
				}
			}
		})
	}

	// The per-call method does not change the image.
	var info describeResult
	mustCallTool(t, s, "image_info", map[string]interface{}{"image": path}, &info)
	if info.VirtualPixelMethod != "edge" {
		t.Errorf("image method = %q, want edge", info.VirtualPixelMethod)
	}
}

func TestPixelsGet_Errors(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 2, "height": 2, "handle": "a"}, nil)

	for name, args := range map[string]map[string]interface{}{
		"empty":   {"image": "a", "x": 0, "y": 0, "width": 0, "height": 1},
		"too big": {"image": "a", "x": 0, "y": 0, "width": 1024, "height": 1024},
		"unknown": {"image": "b", "x": 0, "y": 0, "width": 1, "height": 1},
	} {
		if callTool(t, s, "pixels_get", args, nil) == nil {
			t.Errorf("%s: pixels_get succeeded", name)
		}
	}
}

func TestPixelsSet(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 5, "height": 5, "color": "#000000", "handle": "a"}, nil)
	mustCallTool(t, s, "pixels_set", map[string]interface{}{
		"image": "a", "x": 1, "y": 1, "width": 3, "height": 2, "color": "#00FF00",
	}, nil)

	var result PixelsResult
	mustCallTool(t, s, "pixels_get", map[string]interface{}{"image": "a", "x": 0, "y": 0, "width": 5, "height": 5}, &result)
	for y, row := range result.Pixels {
		for x, got := range row {
			want := "#000000"
			if x >= 1 && x < 4 && y >= 1 && y < 3 {
				want = "#00FF00"
			}
			if got != want {
				t.Errorf("(%d,%d) = %s, want %s", x, y, got, want)
			}
		}
	}

	if callTool(t, s, "pixels_set", map[string]interface{}{
		"image": "a", "x": 4, "y": 4, "width": 2, "height": 1, "color": "#FFFFFF",
	}, nil) == nil {
		t.Error("pixels_set outside the image succeeded")
	}
}

func TestPixels_HugeCoordinates(t *testing.T) {
	s := New()
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 4, "height": 4, "color": "#102030", "handle": "a"}, nil)

	for name, c := range map[string]struct {
		tool string
		args map[string]interface{}
	}{
		"set at huge x": {"pixels_set", map[string]interface{}{
			"image": "a", "x": math.MaxInt - 1, "y": 0, "width": 10, "height": 1, "color": "#FFFFFF",
		}},
		"set huge width": {"pixels_set", map[string]interface{}{
			"image": "a", "x": 0, "y": 0, "width": math.MaxInt, "height": 1, "color": "#FFFFFF",
		}},
		"get wrapping size": {"pixels_get", map[string]interface{}{
			"image": "a", "x": 0, "y": 0, "width": int64(1) << 62, "height": 4,
		}},
		"get at huge x": {"pixels_get", map[string]interface{}{
			"image": "a", "x": math.MaxInt - 1, "y": 0, "width": 10, "height": 1,
		}},
	} {
		if callTool(t, s, c.tool, c.args, nil) == nil {
			t.Errorf("%s: %s succeeded", name, c.tool)
		}
	}

	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "a", "x": 1, "y": 1}, &px)
	if px.Hex != "#102030" {
		t.Errorf("pixel after rejected requests = %s, want #102030", px.Hex)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked after rejected requests")
	}
}

func TestPixelsSet_PseudoClassGoesDirect(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 3, "height": 3, "handle": "a"}, nil)

	var info describeResult
	mustCallTool(t, s, "image_set_storage_class", map[string]interface{}{"image": "a", "class": "pseudo"}, &info)
	if info.StorageClass != "pseudo" || info.Colors != 1 {
		t.Fatalf("after pseudo: %+v", info)
	}

	mustCallTool(t, s, "pixels_set", map[string]interface{}{
		"image": "a", "x": 0, "y": 0, "width": 1, "height": 1, "color": "#FFFFFF",
	}, nil)
	mustCallTool(t, s, "image_info", map[string]interface{}{"image": "a"}, &info)
	if info.StorageClass != "direct" {
		t.Errorf("storage class = %q, want direct", info.StorageClass)
	}

	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "a", "x": 0, "y": 0}, &px)
	if px.Hex != "#FFFFFF" {
		t.Errorf("pixel = %s, want #FFFFFF", px.Hex)
	}

	if callTool(t, s, "image_set_storage_class", map[string]interface{}{"image": "a", "class": "palette-ish"}, nil) == nil {
		t.Error("unknown storage class accepted")
	}
}

func TestPixelGet_Outside(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{
		"width": 2, "height": 2, "color": "#123456", "background": "#ABCDEF",
		"virtual_pixel_method": "background", "handle": "a",
	}, nil)

	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "a", "x": 10, "y": -3}, &px)
	if px.Inside || px.Hex != "#ABCDEF" {
		t.Errorf("background pixel = %+v", px)
	}
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "a", "x": 10, "y": -3, "virtual_pixel_method": "edge"}, &px)
	if px.Hex != "#123456" {
		t.Errorf("edge pixel = %s, want #123456", px.Hex)
	}
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "a", "x": 10, "y": -3, "virtual_pixel_method": "white"}, &px)
	if px.Hex != "#FFFFFF" || px.HSL.L != 100 {
		t.Errorf("white pixel = %+v", px)
	}
}

func TestConvolve(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 4, "height": 4, "color": "#646464", "handle": "a"}, nil)

	var out describeResult
	mustCallTool(t, s, "image_convolve", map[string]interface{}{"image": "a", "kernel": "box-blur", "radius": 2, "output": "blurred"}, &out)
	if out.Handle != "blurred" || out.Width != 4 || out.References != 1 {
		t.Errorf("image_convolve = %+v", out)
	}

	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "blurred", "x": 0, "y": 0}, &px)
	if px.Hex != "#646464" {
		t.Errorf("blurred uniform pixel = %s, want #646464", px.Hex)
	}

	mustCallTool(t, s, "image_convolve", map[string]interface{}{"image": "a", "kernel": "sharpen"}, &out)
	if out.Handle != "convolve-1" {
		t.Errorf("generated handle = %q, want convolve-1", out.Handle)
	}

	if callTool(t, s, "image_convolve", map[string]interface{}{"image": "a", "kernel": "emboss"}, nil) == nil {
		t.Error("unknown kernel accepted")
	}
}

func TestCrop(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80)
	mustCallTool(t, s, "image_load", map[string]interface{}{"path": path}, nil)

	var result CropResult
	mustCallTool(t, s, "image_crop", map[string]interface{}{
		"image": path, "x": 10, "y": 10, "width": 50, "height": 40, "scale": 2.0,
	}, &result)
	if result.EncodedImage == nil || result.Width != 100 || result.Height != 80 || result.MimeType != "image/png" {
		t.Fatalf("image_crop = %+v", result)
	}
	if result.ImageBase64 == "" {
		t.Error("image_base64 empty")
	}

	var info describeResult
	mustCallTool(t, s, "image_info", map[string]interface{}{"image": result.Handle}, &info)
	if info.Width != 50 || info.Height != 40 {
		t.Errorf("cropped image = %dx%d, want 50x40", info.Width, info.Height)
	}

	mustCallTool(t, s, "image_crop", map[string]interface{}{"image": path, "quadrant": "bottom-right", "output": "br"}, &result)
	if result.Handle != "br" || result.Region.X != 50 || result.Region.Y != 40 {
		t.Errorf("quadrant crop = %+v", result.Region)
	}
	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": "br", "x": 0, "y": 0}, &px)
	if px.Hex != "#FFFFFF" {
		t.Errorf("bottom-right pixel = %s, want #FFFFFF", px.Hex)
	}

	if callTool(t, s, "image_crop", map[string]interface{}{"image": path, "quadrant": "middle"}, nil) == nil {
		t.Error("unknown quadrant accepted")
	}
	if callTool(t, s, "image_crop", map[string]interface{}{"image": path}, nil) == nil {
		t.Error("crop without a region accepted")
	}
}

func TestDominantColors(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 10, 10)
	mustCallTool(t, s, "image_load", map[string]interface{}{"path": path}, nil)

	var result struct {
		Colors []struct {
			Hex        string  `json:"hex"`
			Percentage float64 `json:"percentage"`
		} `json:"colors"`
	}
	mustCallTool(t, s, "image_dominant_colors", map[string]interface{}{"image": path}, &result)
	if len(result.Colors) != 4 {
		t.Fatalf("got %d colors, want 4", len(result.Colors))
	}

	mustCallTool(t, s, "image_dominant_colors", map[string]interface{}{
		"image": path, "count": 2,
		"region": map[string]interface{}{"x": 5, "y": 5, "width": 5, "height": 5},
	}, &result)
	if len(result.Colors) != 1 || result.Colors[0].Hex != "#F0F0F0" || result.Colors[0].Percentage != 100 {
		t.Errorf("region colors = %+v", result.Colors)
	}

	if callTool(t, s, "image_dominant_colors", map[string]interface{}{
		"image": path, "region": map[string]interface{}{"x": 8, "y": 8, "width": 5, "height": 5},
	}, nil) == nil {
		t.Error("region outside image accepted")
	}
}

func TestImageSave(t *testing.T) {
	s := newTestServer(t)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 3, "height": 2, "color": "#336699", "handle": "a"}, nil)

	out := filepath.Join(t.TempDir(), "out.png")
	mustCallTool(t, s, "image_save", map[string]interface{}{"image": "a", "path": out}, nil)

	var loaded describeResult
	mustCallTool(t, s, "image_load", map[string]interface{}{"path": out}, &loaded)
	if loaded.Width != 3 || loaded.Height != 2 {
		t.Errorf("reloaded = %dx%d", loaded.Width, loaded.Height)
	}
	var px PixelResult
	mustCallTool(t, s, "pixel_get", map[string]interface{}{"image": out, "x": 2, "y": 1}, &px)
	if px.Hex != "#336699" {
		t.Errorf("reloaded pixel = %s, want #336699", px.Hex)
	}
}

func TestCacheStats(t *testing.T) {
	s := newTestServer(t, magick.WithCacheOptions(cache.Options{MemoryLimit: 1, TempDir: t.TempDir(), RowCacheRows: 4}))
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 8, "height": 8, "handle": "b"}, nil)
	mustCallTool(t, s, "image_create", map[string]interface{}{"width": 8, "height": 8, "handle": "a"}, nil)

	var stats struct {
		Images      int              `json:"images"`
		Concurrency int              `json:"concurrency"`
		Handles     []describeResult `json:"handles"`
	}
	mustCallTool(t, s, "cache_stats", nil, &stats)
	if stats.Images != 2 || stats.Concurrency < 1 {
		t.Errorf("cache_stats = %+v", stats)
	}
	if stats.Handles[0].Handle != "a" || stats.Handles[1].Handle != "b" {
		t.Errorf("handles not sorted: %+v", stats.Handles)
	}
	for _, h := range stats.Handles {
		if h.CacheType != "disk" || h.References != 1 {
			t.Errorf("%s: cache %q refs %d", h.Handle, h.CacheType, h.References)
		}
	}
}

func TestUnknownTool(t *testing.T) {
	s := newTestServer(t)
	mcpErr := callTool(t, s, "image_ocr_full", map[string]interface{}{}, nil)
	if mcpErr == nil || mcpErr.Code != -32000 {
		t.Errorf("unknown tool error = %+v", mcpErr)
	}
}

func TestInvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("invalid params error = %+v", resp.Error)
	}
}

func TestImageHandleErrors(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.image(""); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("image(\"\") error = %v", err)
	}
	if _, err := s.image("nope"); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("image(nope) error = %v", err)
	}
}
