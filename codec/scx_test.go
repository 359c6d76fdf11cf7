package codec

import (
	"testing"

	"github.com/32bitkid/retrofmt/screen"
)

// vga fills the palette with colours a 6-bit DAC reproduces exactly.
func vga(ctx *Context, n int) {
	for i := 0; i < n; i++ {
		v := uint8(i % 64)
		ctx.Palette[i] = screen.RGB{R: expand6(v), G: expand6(63 - v), B: expand6(uint8(i / 64 * 21))}
	}
}

func TestSCXRoundTrip(t *testing.T) {
	tests := []struct {
		colors int
		planes uint8
	}{
		{2, 1},
		{16, 4},
		{200, 0},
	}
	for _, tt := range tests {
		src := source(21, 7, pattern(tt.colors))
		vga(src, tt.colors)
		data := save(t, scxCodec{}, src)
		if string(data[:4]) != scxMagic || data[9] != tt.planes {
			t.Fatalf("%d colours: expected(%d planes) != actual(%d)", tt.colors, tt.planes, data[9])
		}
		dst, pic := load(t, scxCodec{}, "pic.sci", data)
		samePixels(t, src.Canvas, pic)
		samePalette(t, &src.Palette, &dst.Palette, tt.colors)
	}
}

func TestSCXPlanarLayout(t *testing.T) {
	src := source(8, 1, func(x, y int) uint8 { return uint8(x % 4) })
	data := save(t, scxCodec{}, src)
	pixels := data[scxHeaderSize+4*3:]
	// plane 0 holds the low bits, plane 1 the high bits
	if pixels[0] != 0x55 || pixels[1] != 0x33 {
		t.Fatalf("expected([0x55 0x33]) != actual(%#x)", pixels)
	}
}
