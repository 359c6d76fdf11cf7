package screen

import (
	"image"
	"image/color"
	"testing"
)

func TestCRT(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.White)
	src.Set(1, 0, color.Black)

	dst := CRT(src)
	if b := dst.Bounds(); b.Dx() != 2*CRTScale || b.Dy() != CRTScale {
		t.Fatalf("expected(12x6) != actual(%dx%d)", b.Dx(), b.Dy())
	}

	// centre of the white pixel, under a green phosphor, no scan line
	if c := dst.NRGBAAt(3, 2); c != (color.NRGBA{R: 153, G: 255, B: 153, A: 0xFF}) {
		t.Fatalf("expected(153 255 153) != actual(%v)", c)
	}
	if c := dst.NRGBAAt(CRTScale+3, 2); c != (color.NRGBA{A: 0xFF}) {
		t.Fatalf("expected(black) != actual(%v)", c)
	}
	// the black pixel picks up some of the white one on its left
	if c := dst.NRGBAAt(CRTScale, 2); c.R == 0 && c.G == 0 && c.B == 0 {
		t.Fatal("expected bleed from the left neighbour")
	}
	// scan lines are darker than the row centre
	if top, mid := dst.NRGBAAt(3, 0), dst.NRGBAAt(3, 2); top.G >= mid.G {
		t.Fatalf("expected a darker scan line, got %v and %v", top, mid)
	}
}
