package screen

import (
	"image"

	"golang.org/x/image/draw"
)

// Scale enlarges img by n, correcting for the pixel ratio so the result has
// square pixels. Nearest neighbour keeps the hard pixel edges.
func Scale(img image.Image, ratio PixelRatio, n int) image.Image {
	if n < 1 {
		n = 1
	}
	sx, sy := ratio.Scale()
	sx, sy = sx*n, sy*n
	if sx == 1 && sy == 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*sx, b.Dy()*sy))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
