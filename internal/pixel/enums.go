package pixel

import "strings"

// Colorspace tags the interpretation of the color channels.
type Colorspace int

const (
	UndefinedColorspace Colorspace = iota
	SRGBColorspace
	LinearRGBColorspace
	GrayColorspace
	CMYKColorspace
)

var colorspaceNames = [...]string{"undefined", "srgb", "linear-rgb", "gray", "cmyk"}

func (c Colorspace) String() string {
	if c < 0 || int(c) >= len(colorspaceNames) {
		return "undefined"
	}
	return colorspaceNames[c]
}

// ParseColorspace returns the colorspace named s.
func ParseColorspace(s string) (Colorspace, bool) {
	s = strings.ToLower(s)
	for i, name := range colorspaceNames {
		if name == s {
			return Colorspace(i), true
		}
	}
	return UndefinedColorspace, false
}

// StorageClass describes whether pixels hold direct color values or are
// backed by a colormap.
type StorageClass int

const (
	UndefinedClass StorageClass = iota
	DirectClass
	PseudoClass
)

func (c StorageClass) String() string {
	switch c {
	case DirectClass:
		return "direct"
	case PseudoClass:
		return "pseudo"
	}
	return "undefined"
}

// ParseStorageClass returns the storage class named s (direct or pseudo).
func ParseStorageClass(s string) (StorageClass, bool) {
	switch strings.ToLower(s) {
	case "direct", "directclass":
		return DirectClass, true
	case "pseudo", "pseudoclass", "palette":
		return PseudoClass, true
	}
	return UndefinedClass, false
}

// VirtualMethod is the policy used to synthesize pixels outside the image.
type VirtualMethod int

const (
	UndefinedVirtualPixelMethod VirtualMethod = iota
	BackgroundVirtualPixelMethod
	DitherVirtualPixelMethod
	EdgeVirtualPixelMethod
	MirrorVirtualPixelMethod
	RandomVirtualPixelMethod
	TileVirtualPixelMethod
	TransparentVirtualPixelMethod
	BlackVirtualPixelMethod
	GrayVirtualPixelMethod
	WhiteVirtualPixelMethod
	HorizontalTileVirtualPixelMethod
	VerticalTileVirtualPixelMethod
	HorizontalTileEdgeVirtualPixelMethod
	VerticalTileEdgeVirtualPixelMethod
	CheckerTileVirtualPixelMethod
)

var virtualMethodNames = [...]string{
	"undefined", "background", "dither", "edge", "mirror", "random", "tile",
	"transparent", "black", "gray", "white", "horizontal-tile",
	"vertical-tile", "horizontal-tile-edge", "vertical-tile-edge",
	"checker-tile",
}

func (m VirtualMethod) String() string {
	if m < 0 || int(m) >= len(virtualMethodNames) {
		return "undefined"
	}
	return virtualMethodNames[m]
}

// ParseVirtualMethod returns the virtual pixel method named s. Names are
// case-insensitive and may use dashes or no separators ("HorizontalTile").
func ParseVirtualMethod(s string) (VirtualMethod, bool) {
	key := strings.ReplaceAll(strings.ToLower(s), "-", "")
	key = strings.ReplaceAll(key, "_", "")
	for i, name := range virtualMethodNames {
		if strings.ReplaceAll(name, "-", "") == key {
			return VirtualMethod(i), true
		}
	}
	return UndefinedVirtualPixelMethod, false
}
