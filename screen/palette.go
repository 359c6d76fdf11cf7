package screen

import (
	"image/color"
)

// RGB is one palette entry, 8 bits per component.
type RGB struct {
	R, G, B uint8
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) * 0x101
	g = uint32(c.G) * 0x101
	b = uint32(c.B) * 0x101
	a = 0xFFFF
	return
}

type rgb24Color uint32

func (rgb24 rgb24Color) RGB() RGB {
	return RGB{uint8(rgb24 >> 16), uint8(rgb24 >> 8), uint8(rgb24)}
}

// Palette is the 256 entry colour table shared by a loading or saving
// picture. Entries past a format's colour count are either left alone or
// zeroed, depending on the caller's clear policy.
type Palette [256]RGB

func (p *Palette) Clear() {
	*p = Palette{}
}

// Set copies colors into p starting at index first.
func (p *Palette) Set(first int, colors []RGB) {
	copy(p[first:], colors)
}

// Color returns the first n entries as a color.Palette.
func (p *Palette) Color(n int) color.Palette {
	if n > len(p) {
		n = len(p)
	}
	out := make(color.Palette, n)
	for i := range out {
		out[i] = p[i]
	}
	return out
}

// FromColors converts a color.Palette, truncating it to 256 entries.
func FromColors(src color.Palette) Palette {
	var p Palette
	for i, c := range src {
		if i >= len(p) {
			break
		}
		r, g, b, _ := c.RGBA()
		p[i] = RGB{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
	}
	return p
}

// Gray returns an n step ramp from black to white.
func Gray(n int) []RGB {
	out := make([]RGB, n)
	if n == 1 {
		return out
	}
	for i := range out {
		v := uint8(i * 255 / (n - 1))
		out[i] = RGB{v, v, v}
	}
	return out
}

func table(values ...rgb24Color) []RGB {
	out := make([]RGB, len(values))
	for i, v := range values {
		out[i] = v.RGB()
	}
	return out
}

var DefaultPalettes = struct {
	EGA      []RGB
	AppleHGR []RGB
	AppleLo  []RGB

	Workbench []RGB
	MagicWB   []RGB
}{
	EGA: table(
		0x000000, 0x0000AA, 0x00AA00, 0x00AAAA,
		0xAA0000, 0xAA00AA, 0xAA5500, 0xAAAAAA,

		0x555555, 0x5555FF, 0x55FF55, 0x55FFFF,
		0xFF5555, 0xFF55FF, 0xFFFF55, 0xFFFFFF,
	),
	// black, purple, green, blue, orange, white
	AppleHGR: table(
		0x000000, 0xDD22DD, 0x11DD00, 0x2222FF, 0xFF6600, 0xFFFFFF,
	),
	// the 16 low resolution colours, also used by double hi-res
	AppleLo: table(
		0x000000, 0xDD0033, 0x000099, 0xDD22DD,
		0x007722, 0x555555, 0x2222FF, 0x66AAFF,

		0x885500, 0xFF6600, 0xAAAAAA, 0xFF9988,
		0x11DD00, 0xFFFF00, 0x44FF99, 0xFFFFFF,
	),
	// Workbench 2 icons: grey, black, white, blue
	Workbench: table(0xAAAAAA, 0x000000, 0xFFFFFF, 0x6688BB),
	MagicWB: table(
		0x959595, 0x000000, 0xFFFFFF, 0x3B67A2,
		0x7B7B7B, 0xAFAFAF, 0xAA907C, 0xFFA997,
	),
}
