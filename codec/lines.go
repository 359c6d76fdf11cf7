package codec

import (
	"bufio"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

// drawIndexed writes one row of palette indices.
func drawIndexed(c screen.Canvas, y int, px []uint8) {
	for x, v := range px {
		c.SetPixel(x, y, v)
	}
}

// drawPacked writes one row of chunky pixels, bpp bits each, leftmost pixel
// in the high bits.
func drawPacked(c screen.Canvas, y, width int, src []byte, bpp uint) error {
	px, err := compression.UnpackPixels(src, bpp, width)
	if err != nil {
		return err
	}
	drawIndexed(c, y, px)
	return nil
}

// drawPlanar merges one row of bitplanes, plane 0 being the low bit.
func drawPlanar(c screen.Canvas, y, width int, planes [][]byte, scratch []uint8) {
	compression.Planes(planes, width, scratch[:width])
	drawIndexed(c, y, scratch[:width])
}

// readRow copies one row of indices out of the canvas.
func readRow(c screen.Canvas, y int, dst []uint8) []uint8 {
	for x := range dst {
		dst[x] = c.GetPixel(x, y)
	}
	return dst
}

// maxIndex is the highest palette index used by the picture.
func maxIndex(c screen.Canvas) uint8 {
	var m uint8
	for y := 0; y < c.Height(); y++ {
		for x := 0; x < c.Width(); x++ {
			if v := c.GetPixel(x, y); v > m {
				m = v
			}
		}
	}
	return m
}

// depthFor returns the smallest bits per pixel, among depths, able to
// hold index max.
func depthFor(max uint8, depths ...uint) uint {
	for _, d := range depths {
		if int(max) < 1<<d {
			return d
		}
	}
	return depths[len(depths)-1]
}

func byteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

func readRGB(r io.Reader, n int) ([]screen.RGB, error) {
	buf := make([]byte, n*3)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	out := make([]screen.RGB, n)
	for i := range out {
		out[i] = screen.RGB{R: buf[i*3], G: buf[i*3+1], B: buf[i*3+2]}
	}
	return out, nil
}

func writeRGB(w io.Writer, colors []screen.RGB) error {
	buf := make([]byte, 0, len(colors)*3)
	for _, c := range colors {
		buf = append(buf, c.R, c.G, c.B)
	}
	return binio.WriteBytes(w, buf)
}

// expand6 widens a 6-bit VGA DAC component to 8 bits.
func expand6(v uint8) uint8 {
	v &= 0x3F
	return v<<2 | v>>4
}

type loadOnly struct{}

func (loadOnly) Save(*Context, io.Writer) error {
	return unsupported("saving is not implemented")
}
