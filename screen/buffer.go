package screen

import "errors"

var (
	ErrEmpty    = errors.New("screen: zero sized picture")
	ErrTooLarge = errors.New("screen: picture exceeds maximum dimension")
	ErrNoLayer  = errors.New("screen: layer out of range")
)

type ImageMode uint8

const (
	ModeImage ImageMode = iota
	ModeLayers
	ModeAnimation
)

func (m ImageMode) String() string {
	switch m {
	case ModeImage:
		return "ImageMode(Image)"
	case ModeLayers:
		return "ImageMode(Layers)"
	case ModeAnimation:
		return "ImageMode(Animation)"
	}
	return "ImageMode(UNKNOWN)"
}

// PixelRatio is the shape of one source pixel on the original display.
type PixelRatio uint8

const (
	PixelSimple PixelRatio = iota
	PixelWide
	PixelTall
)

// Scale is the integer factor that makes pixels square.
func (r PixelRatio) Scale() (sx, sy int) {
	switch r {
	case PixelWide:
		return 2, 1
	case PixelTall:
		return 1, 2
	}
	return 1, 1
}

// Info is what a codec announces before the first pixel.
type Info struct {
	Width, Height int
	FileSize      int64
	Format        string
	Ratio         PixelRatio
	BitsPerPixel  int

	// Palette is the table the codec fills. True colour writes are matched
	// against it.
	Palette *Palette
}

// Canvas is everything a codec may do to the picture it loads into or
// saves from. PreLoad is called exactly once per load, before any pixel.
//
// In ModeAnimation a layer created by SetLayer starts as a copy of the
// previous one; in the other modes it starts filled with index 0.
type Canvas interface {
	PreLoad(info Info) error
	SetImageMode(mode ImageMode)
	SetLayer(n int) error
	LayerCount() int

	SetPixel(x, y int, c uint8)
	GetPixel(x, y int) uint8
	SetPixelRGB(x, y int, r, g, b uint8)

	SetFrameDuration(ms int)
	FrameDuration() int

	Width() int
	Height() int
}
