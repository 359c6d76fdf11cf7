package screen

import (
	"image/color"
	"testing"
)

func TestPreLoadLimits(t *testing.T) {
	p := &Picture{MaxDimension: 100}
	tests := []struct {
		w, h int
		want error
	}{
		{0, 10, ErrEmpty},
		{10, -1, ErrEmpty},
		{101, 10, ErrTooLarge},
		{100, 100, nil},
	}
	for _, tt := range tests {
		if err := p.PreLoad(Info{Width: tt.w, Height: tt.h}); err != tt.want {
			t.Fatalf("%dx%d: expected(%v) != actual(%v)", tt.w, tt.h, tt.want, err)
		}
	}
}

func TestPixelsAndBounds(t *testing.T) {
	p := NewPicture(4, 3, nil)
	p.SetPixel(1, 2, 9)
	p.SetPixel(4, 0, 9)
	p.SetPixel(-1, 0, 9)
	if c := p.GetPixel(1, 2); c != 9 {
		t.Fatalf("expected(9) != actual(%d)", c)
	}
	if c := p.GetPixel(7, 7); c != 0 {
		t.Fatalf("expected(0) != actual(%d) outside the picture", c)
	}
}

func TestAnimationLayersCopyPrevious(t *testing.T) {
	p := NewPicture(2, 2, nil)
	p.SetImageMode(ModeAnimation)
	p.SetPixel(0, 0, 5)
	p.SetFrameDuration(40)
	if err := p.SetLayer(1); err != nil {
		t.Fatal(err)
	}
	if c := p.GetPixel(0, 0); c != 5 {
		t.Fatalf("expected(5) != actual(%d)", c)
	}
	if d := p.FrameDuration(); d != 0 {
		t.Fatalf("expected(0) != actual(%d)", d)
	}
	if err := p.SetLayer(3); err != ErrNoLayer {
		t.Fatalf("expected layer error, got %v", err)
	}

	q := NewPicture(2, 2, nil)
	q.SetImageMode(ModeLayers)
	q.SetPixel(0, 0, 5)
	_ = q.SetLayer(1)
	if c := q.GetPixel(0, 0); c != 0 {
		t.Fatalf("expected(0) != actual(%d)", c)
	}
}

func TestSetPixelRGB(t *testing.T) {
	var pal Palette
	pal.Set(0, DefaultPalettes.EGA)
	p := NewPicture(2, 1, &pal)
	p.SetPixelRGB(0, 0, 0xFF, 0xFF, 0x55)
	p.SetPixelRGB(1, 0, 0xF0, 0x10, 0x10)
	if c := p.GetPixel(0, 0); c != 14 {
		t.Fatalf("expected(14) != actual(%d)", c)
	}
	if c := p.GetPixel(1, 0); c != 12 && c != 4 {
		t.Fatalf("expected a red entry, got %d", c)
	}
	want := color.NRGBA{0xF0, 0x10, 0x10, 0xFF}
	if got := p.Image(0).At(1, 0); got != want {
		t.Fatalf("expected(%v) != actual(%v)", want, got)
	}
}

func TestPaletteHelpers(t *testing.T) {
	g := Gray(4)
	if g[0] != (RGB{}) || g[3] != (RGB{255, 255, 255}) || g[1].R != 85 {
		t.Fatalf("unexpected ramp %v", g)
	}
	var pal Palette
	pal.Set(0, DefaultPalettes.EGA)
	back := FromColors(pal.Color(16))
	if back != pal {
		t.Fatal("color.Palette conversion is not lossless")
	}
}

func TestScale(t *testing.T) {
	p := NewPicture(3, 2, nil)
	img := Scale(p.Image(0), PixelWide, 2)
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 4 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if b := Scale(p.Image(0), PixelSimple, 1).Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("unit scale changed the bounds to %v", b)
	}
}
