package screen

import (
	"image"
	"image/color"

	clr "github.com/lucasb-eyer/go-colorful"
)

// CRTScale is how many output pixels a source pixel covers in each
// direction once rendered by CRT.
const CRTScale = 6

// Horizontal bleed: the share of the neighbour mixed into each sub-column.
// Negative values take from the left neighbour, positive from the right.
var crtBleed = [CRTScale]float64{-3.0 / 6, -2.0 / 6, -1.0 / 6, 0, 1.0 / 6, 2.0 / 6}

// Scan lines darken the top and bottom rows of each source row.
var crtScan = [CRTScale]float64{0.7, 0.2, 0, 0, 0.1, 0.4}

// Shadow mask: the phosphor lit in each sub-column, staggered on odd rows.
var crtMask = [2][CRTScale]uint8{
	{0, 0, 1, 1, 2, 2},
	{1, 2, 2, 0, 0, 1},
}

var crtPhosphor = [3]clr.Color{
	{R: 1, G: 0.6, B: 0.6},
	{R: 0.6, G: 1, B: 0.6},
	{R: 0.6, G: 0.6, B: 1},
}

func toColorful(c color.Color) clr.Color {
	r, g, b, _ := c.RGBA()
	return clr.Color{R: float64(r) / 0xFFFF, G: float64(g) / 0xFFFF, B: float64(b) / 0xFFFF}
}

// CRT renders img the way a period colour monitor shows it: neighbouring
// pixels bleed into each other, scan lines separate the rows and a shadow
// mask tints the phosphors. The result is CRTScale times larger; correct
// the pixel ratio with Scale first.
func CRT(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*CRTScale, b.Dy()*CRTScale))
	at := func(x, y int) clr.Color {
		if x < b.Min.X {
			x = b.Min.X
		} else if x >= b.Max.X {
			x = b.Max.X - 1
		}
		return toColorful(img.At(x, y))
	}

	for sy := b.Min.Y; sy < b.Max.Y; sy++ {
		for sx := b.Min.X; sx < b.Max.X; sx++ {
			left, c, right := at(sx-1, sy), at(sx, sy), at(sx+1, sy)
			for iy := 0; iy < CRTScale; iy++ {
				for ix := 0; ix < CRTScale; ix++ {
					co := c
					switch t := crtBleed[ix]; {
					case t < 0:
						co = c.BlendRgb(left, -t)
					case t > 0:
						co = c.BlendRgb(right, t)
					}
					dark := 1 - crtScan[iy]
					p := crtPhosphor[crtMask[iy%2][ix]]
					co = clr.Color{R: co.R * p.R * dark, G: co.G * p.G * dark, B: co.B * p.B * dark}

					r, g, bl := co.Clamped().RGB255()
					i := dst.PixOffset((sx-b.Min.X)*CRTScale+ix, (sy-b.Min.Y)*CRTScale+iy)
					dst.Pix[i+0], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = r, g, bl, 0xFF
				}
			}
		}
	}
	return dst
}
