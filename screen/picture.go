package screen

import (
	"image"
)

const DefaultMaxDimension = 16384

// Picture is an in-memory Canvas: one paletted plane per layer, plus a
// true colour plane for layers written with SetPixelRGB.
type Picture struct {
	MaxDimension int

	info      Info
	own       Palette
	mode      ImageMode
	layers    []*image.Paletted
	trueColor []*image.NRGBA
	durations []int
	current   int
	nearest   map[RGB]uint8
}

// NewPicture returns a picture that is already sized, ready to be saved
// from. pal may be nil.
func NewPicture(width, height int, pal *Palette) *Picture {
	p := &Picture{}
	p.reset(Info{Width: width, Height: height, BitsPerPixel: 8, Palette: pal})
	return p
}

func (p *Picture) reset(info Info) {
	if info.Palette == nil {
		info.Palette = &p.own
	}
	p.info = info
	p.mode = ModeImage
	p.layers = []*image.Paletted{p.newLayer()}
	p.trueColor = []*image.NRGBA{nil}
	p.durations = []int{0}
	p.current = 0
	p.nearest = nil
}

func (p *Picture) newLayer() *image.Paletted {
	return &image.Paletted{
		Pix:    make([]uint8, p.info.Width*p.info.Height),
		Stride: p.info.Width,
		Rect:   image.Rect(0, 0, p.info.Width, p.info.Height),
	}
}

func (p *Picture) PreLoad(info Info) error {
	max := p.MaxDimension
	if max <= 0 {
		max = DefaultMaxDimension
	}
	switch {
	case info.Width <= 0 || info.Height <= 0:
		return ErrEmpty
	case info.Width > max || info.Height > max:
		return ErrTooLarge
	}
	p.reset(info)
	return nil
}

func (p *Picture) Info() Info        { return p.info }
func (p *Picture) Palette() *Palette { return p.info.Palette }
func (p *Picture) Mode() ImageMode   { return p.mode }
func (p *Picture) Width() int        { return p.info.Width }
func (p *Picture) Height() int       { return p.info.Height }
func (p *Picture) LayerCount() int   { return len(p.layers) }

func (p *Picture) SetImageMode(mode ImageMode) {
	p.mode = mode
}

// SetLayer selects layer n, creating it when n is one past the last layer.
func (p *Picture) SetLayer(n int) error {
	if n < 0 || n > len(p.layers) {
		return ErrNoLayer
	}
	if n == len(p.layers) {
		l := p.newLayer()
		if p.mode == ModeAnimation {
			copy(l.Pix, p.layers[n-1].Pix)
		}
		p.layers = append(p.layers, l)
		p.trueColor = append(p.trueColor, nil)
		p.durations = append(p.durations, 0)
	}
	p.current = n
	return nil
}

func (p *Picture) SetPixel(x, y int, c uint8) {
	p.layers[p.current].SetColorIndex(x, y, c)
}

func (p *Picture) GetPixel(x, y int) uint8 {
	return p.layers[p.current].ColorIndexAt(x, y)
}

// SetPixelRGB keeps the exact colour in the layer's true colour plane and
// stores the nearest palette entry as the index.
func (p *Picture) SetPixelRGB(x, y int, r, g, b uint8) {
	if !(image.Point{x, y}.In(p.layers[p.current].Rect)) {
		return
	}
	tc := p.trueColor[p.current]
	if tc == nil {
		tc = image.NewNRGBA(p.layers[p.current].Rect)
		p.trueColor[p.current] = tc
	}
	i := tc.PixOffset(x, y)
	tc.Pix[i+0], tc.Pix[i+1], tc.Pix[i+2], tc.Pix[i+3] = r, g, b, 0xFF

	c := RGB{r, g, b}
	if p.nearest == nil {
		p.nearest = make(map[RGB]uint8)
	}
	idx, ok := p.nearest[c]
	if !ok {
		idx = p.info.Palette.Nearest(c, len(p.info.Palette))
		p.nearest[c] = idx
	}
	p.SetPixel(x, y, idx)
}

func (p *Picture) SetFrameDuration(ms int) { p.durations[p.current] = ms }
func (p *Picture) FrameDuration() int      { return p.durations[p.current] }

// Layer returns the paletted plane of layer n, without a colour table.
func (p *Picture) Layer(n int) *image.Paletted {
	return p.layers[n]
}

// Image renders layer n: its true colour plane when one was written,
// otherwise the indices against the current palette.
func (p *Picture) Image(n int) image.Image {
	if tc := p.trueColor[n]; tc != nil {
		return tc
	}
	l := p.layers[n]
	return &image.Paletted{
		Pix:     l.Pix,
		Stride:  l.Stride,
		Rect:    l.Rect,
		Palette: p.info.Palette.Color(len(p.info.Palette)),
	}
}
