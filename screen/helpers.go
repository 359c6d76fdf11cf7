package screen

import (
	"math"

	clr "github.com/lucasb-eyer/go-colorful"
)

func (c RGB) lab() clr.Color {
	return clr.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Nearest returns the index among the first n entries of p that is closest
// to c in CIE L*a*b* space. Exact matches win without any conversion.
func (p *Palette) Nearest(c RGB, n int) uint8 {
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		if p[i] == c {
			return uint8(i)
		}
	}

	target := c.lab()
	best, bestDist := 0, math.MaxFloat64
	for i := 0; i < n; i++ {
		if d := target.DistanceLab(p[i].lab()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}
